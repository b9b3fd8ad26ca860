package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"watch-market/models"
)

// ErrMissingColumn is returned when the input lacks a required column.
var ErrMissingColumn = errors.New("csv: missing required column")

// missingTokens are the cell values read as missing, besides the empty cell.
var missingTokens = map[string]bool{
	"nan": true, "na": true, "n/a": true, "null": true, "none": true,
}

// shippingAliases maps accepted header spellings onto the shipping column.
var shippingAliases = map[string]string{
	"additional shipping price": models.ColShipping,
}

// ReadRawListings loads the scraped listings file. Every column of
// models.RawColumns must be present; other columns are ignored. Cells that
// fail to parse as numbers are read as missing.
func ReadRawListings(path string) ([]*models.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	listings, err := DecodeRawListings(f)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return listings, nil
}

// DecodeRawListings reads scraped listings from r.
func DecodeRawListings(r io.Reader) ([]*models.Listing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := shippingAliases[h]; ok {
			h = alias
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, col := range models.RawColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	var listings []*models.Listing
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cell := func(col string) *string {
			i := index[col]
			if i >= len(rec) {
				return nil
			}
			return text(rec[i])
		}
		num := func(col string) *float64 { return number(cell(col)) }

		listings = append(listings, &models.Listing{
			AdName:          cell(models.ColAdName),
			Reference:       cell(models.ColReference),
			Model:           cell(models.ColModel),
			Price:           num(models.ColPrice),
			Shipping:        num(models.ColShipping),
			CaseDiameterRaw: cell(models.ColCaseDiameter),
			CaseMaterial:    cell(models.ColCaseMaterial),
			Year:            num(models.ColYear),
			Movement:        cell(models.ColMovement),
			Condition:       cell(models.ColCondition),
			ScopeOfDelivery: cell(models.ColScopeOfDelivery),
			Location:        cell(models.ColLocation),
		})
	}
	return listings, nil
}

func text(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || missingTokens[strings.ToLower(s)] {
		return nil
	}
	return &s
}

func number(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// CSVWriter writes a dataset to a delimited file, replacing any previous
// file at the path in one rename.
type CSVWriter struct {
	path string
}

// NewCSVWriter prepares a writer for path, creating intermediate directories.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{path: path}, nil
}

// Path is the destination file.
func (c *CSVWriter) Path() string { return c.path }

// WriteListings writes the header and one row per listing. Missing values
// are empty cells.
func (c *CSVWriter) WriteListings(columns []string, listings []*models.Listing) error {
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := EncodeListings(tmp, columns, listings); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("csv: replace %q: %w", c.path, err)
	}
	return nil
}

// EncodeListings writes columns and listings as CSV to w.
func EncodeListings(w io.Writer, columns []string, listings []*models.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	row := make([]string, len(columns))
	for _, l := range listings {
		for i, col := range columns {
			row[i] = formatCell(l.Value(col))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
