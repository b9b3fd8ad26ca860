package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"watch-market/models"
	"watch-market/utils"
)

const (
	// ListingsTable holds the processed listings.
	ListingsTable = "watches"
	// TrendsTable holds one fitted trend per reference number.
	TrendsTable = "value_retention_rate"

	batchSize = 50
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	driver     string
	realType   string
	boolType   string
	positional bool
}

func (d dialect) placeholder(n int) string {
	if d.positional {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var dialects = map[string]dialect{
	DriverSQLite:   {driver: "sqlite", realType: "REAL", boolType: "INTEGER"},
	DriverPostgres: {driver: "postgres", realType: "DOUBLE PRECISION", boolType: "BOOLEAN", positional: true},
}

// SQLStore persists processed listings and trends in SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenStore connects to the store, pinging through retry until it answers.
func OpenStore(driver, dsn string, retry *utils.RetryConfig) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	if err := retry.Do(driver+" ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: %w", err)
	}

	return &SQLStore{db: db, dialect: d}, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (s *SQLStore) columnType(col string) string {
	switch col {
	case models.ColHasBox, models.ColHasPapers, models.ColFullSet:
		return "INTEGER"
	case models.ColPrice, models.ColShipping, models.ColCaseDiameter, models.ColAge, models.ColShipTotal:
		return s.dialect.realType
	}
	if strings.HasSuffix(col, models.EncodedSuffix) {
		return "INTEGER"
	}
	return "TEXT"
}

// ListingColumns is the stored column set for the given encoded columns.
func ListingColumns(encoded []string) []string {
	cols := append([]string{}, models.ProcessedBaseColumns...)
	for _, c := range encoded {
		cols = append(cols, c+models.EncodedSuffix)
	}
	return cols
}

// ReplaceListings drops and recreates the listings table inside one
// transaction, so readers see either the previous table or the new one.
func (s *SQLStore) ReplaceListings(listings []*models.Listing, encoded []string) error {
	cols := ListingColumns(encoded)

	defs := []string{quote("id") + " INTEGER PRIMARY KEY"}
	for _, c := range cols {
		defs = append(defs, quote(c)+" "+s.columnType(c))
	}

	return s.inTx("replace listings", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quote(ListingsTable)); err != nil {
			return err
		}
		if _, err := tx.Exec(`CREATE TABLE ` + quote(ListingsTable) + ` (` + strings.Join(defs, ", ") + `)`); err != nil {
			return err
		}

		insertCols := append([]string{"id"}, cols...)
		for i := 0; i < len(listings); i += batchSize {
			end := i + batchSize
			if end > len(listings) {
				end = len(listings)
			}
			batch := make([][]any, 0, end-i)
			for j, l := range listings[i:end] {
				row := make([]any, 0, len(insertCols))
				row = append(row, i+j+1)
				for _, c := range cols {
					row = append(row, l.Value(c))
				}
				batch = append(batch, row)
			}
			if err := s.insertBatch(tx, ListingsTable, insertCols, batch); err != nil {
				return err
			}
		}

		_, err := tx.Exec(`CREATE INDEX ` + quote("idx_"+ListingsTable+"_reference") +
			` ON ` + quote(ListingsTable) + ` (` + quote(models.ColReference) + `)`)
		return err
	})
}

// ReplaceTrends drops and recreates the trends table inside one transaction.
func (s *SQLStore) ReplaceTrends(trends []models.Trend) error {
	cols := []string{"ref", "slope", "intercept", "r_squared", "p_value", "avg_price", "n", "significant", "depreciation_rate"}
	num := s.dialect.realType
	ddl := `CREATE TABLE ` + quote(TrendsTable) + ` (` +
		`ref TEXT PRIMARY KEY, slope ` + num + `, intercept ` + num + `, r_squared ` + num +
		`, p_value ` + num + `, avg_price ` + num + `, n INTEGER, significant ` + s.dialect.boolType +
		`, depreciation_rate ` + num + `)`

	return s.inTx("replace trends", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + quote(TrendsTable)); err != nil {
			return err
		}
		if _, err := tx.Exec(ddl); err != nil {
			return err
		}
		for i := 0; i < len(trends); i += batchSize {
			end := i + batchSize
			if end > len(trends) {
				end = len(trends)
			}
			batch := make([][]any, 0, end-i)
			for _, t := range trends[i:end] {
				var significant any = t.Significant
				if s.dialect.boolType == "INTEGER" {
					significant = boolInt(t.Significant)
				}
				batch = append(batch, []any{
					t.Reference, t.Slope, t.Intercept, t.RSquared, t.PValue,
					t.AvgPrice, t.N, significant, t.DepreciationRate(),
				})
			}
			if err := s.insertBatch(tx, TrendsTable, cols, batch); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) insertBatch(tx *sql.Tx, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}

	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]any, 0, len(rows)*len(cols))
	n := 0
	for _, row := range rows {
		ph := make([]string, len(row))
		for i := range row {
			n++
			ph[i] = s.dialect.placeholder(n)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, row...)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`,
		quote(table), strings.Join(quoted, ","), strings.Join(valueStrings, ","))
	_, err := tx.Exec(query, valueArgs...)
	return err
}

func (s *SQLStore) inTx(op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: %s: begin: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: %s: commit: %w", op, err)
	}
	return nil
}

var readColumns = []string{
	models.ColReference, models.ColModel, models.ColPrice, models.ColShipping,
	models.ColCaseDiameter, models.ColMovement, models.ColCondition, models.ColAge,
	models.ColMaterialGroup, models.ColHasBox, models.ColHasPapers, models.ColFullSet,
	models.ColShipTotal, models.ColCountry,
}

// ListingsByReference returns the stored listings of one reference number
// in stored order.
func (s *SQLStore) ListingsByReference(reference string) ([]*models.Listing, error) {
	quoted := make([]string, len(readColumns))
	for i, c := range readColumns {
		quoted[i] = quote(c)
	}
	query := `SELECT ` + strings.Join(quoted, ", ") + ` FROM ` + quote(ListingsTable) +
		` WHERE ` + quote(models.ColReference) + ` = ` + s.dialect.placeholder(1) + ` ORDER BY id`

	rows, err := s.db.Query(query, reference)
	if err != nil {
		return nil, fmt.Errorf("store: listings by reference: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var (
			ref, model, movement, condition, material, country sql.NullString
			price, shipping, diameter, age, total              sql.NullFloat64
		)
		if err := rows.Scan(
			&ref, &model, &price, &shipping, &diameter, &movement, &condition, &age,
			&material, &l.HasBox, &l.HasPapers, &l.FullSet, &total, &country,
		); err != nil {
			return nil, fmt.Errorf("store: scan listing: %w", err)
		}
		l.Reference, l.Model = nullString(ref), nullString(model)
		l.Movement, l.Condition = nullString(movement), nullString(condition)
		l.MaterialGroup, l.Country = nullString(material), nullString(country)
		l.Price, l.Shipping, l.ShipTotal = nullFloat(price), nullFloat(shipping), nullFloat(total)
		l.CaseDiameter, l.Age = nullFloat(diameter), nullFloat(age)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ReferenceCounts returns listing counts per reference number, most listed
// first. limit <= 0 returns every reference.
func (s *SQLStore) ReferenceCounts(limit int) ([]models.ReferenceCount, error) {
	ref := quote(models.ColReference)
	query := `SELECT ` + ref + `, COUNT(*) AS n FROM ` + quote(ListingsTable) +
		` GROUP BY ` + ref + ` ORDER BY n DESC, ` + ref
	var args []any
	if limit > 0 {
		query += ` LIMIT ` + s.dialect.placeholder(1)
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: reference counts: %w", err)
	}
	defer rows.Close()

	var counts []models.ReferenceCount
	for rows.Next() {
		var rc models.ReferenceCount
		if err := rows.Scan(&rc.Reference, &rc.Count); err != nil {
			return nil, fmt.Errorf("store: scan reference count: %w", err)
		}
		counts = append(counts, rc)
	}
	return counts, rows.Err()
}

// Trends reads the stored trends, steepest appreciation first.
func (s *SQLStore) Trends() ([]models.Trend, error) {
	rows, err := s.db.Query(`SELECT ref, slope, intercept, r_squared, p_value, avg_price, n, significant FROM ` +
		quote(TrendsTable) + ` ORDER BY slope DESC, ref`)
	if err != nil {
		return nil, fmt.Errorf("store: trends: %w", err)
	}
	defer rows.Close()

	var trends []models.Trend
	for rows.Next() {
		var t models.Trend
		if err := rows.Scan(&t.Reference, &t.Slope, &t.Intercept, &t.RSquared, &t.PValue,
			&t.AvgPrice, &t.N, &t.Significant); err != nil {
			return nil, fmt.Errorf("store: scan trend: %w", err)
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return models.Str(v.String)
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Num(v.Float64)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
