package services

import (
	"regexp"
	"strconv"
	"strings"

	"watch-market/models"
	"watch-market/utils"
)

const (
	minCaseDiameter = 14.0
	maxCaseDiameter = 60.0
	minProductionYr = 1905.0
)

var (
	// caseSizeJunkRegexp matches everything that cannot be part of a size token.
	caseSizeJunkRegexp = regexp.MustCompile(`[^0-9x.,]`)
	// caseSizeRegexp captures the leading number, "." or "," as decimal separator.
	caseSizeRegexp = regexp.MustCompile(`^(\d+[.,]?\d*)`)
)

// Scope-of-delivery descriptions as the marketplace spells them.
const (
	ScopeFullSet    = "Original box, original papers"
	ScopeNothing    = "No original box, no original papers"
	ScopeBoxOnly    = "Original box, no original papers"
	ScopePapersOnly = "Original papers, no original box"
)

type accessories struct {
	box, papers int
}

var scopeOfDelivery = map[string]accessories{
	ScopeFullSet:    {box: 1, papers: 1},
	ScopeNothing:    {box: 0, papers: 0},
	ScopeBoxOnly:    {box: 1, papers: 0},
	ScopePapersOnly: {box: 0, papers: 1},
}

// CleanerOptions are the Stage A tunables.
type CleanerOptions struct {
	DataYear          int
	MaterialThreshold float64
	MaxShipping       float64
	LocationThreshold float64
}

// DefaultCleanerOptions mirrors the settings the dataset was first cleaned with.
func DefaultCleanerOptions() CleanerOptions {
	return CleanerOptions{
		DataYear:          2023,
		MaterialThreshold: 0.01,
		MaxShipping:       12000,
		LocationThreshold: 0.01,
	}
}

// Cleaner runs Stage A: field normalization and derived columns.
type Cleaner struct {
	opts   CleanerOptions
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given options and logger.
func NewCleaner(opts CleanerOptions, logger *utils.Logger) *Cleaner {
	return &Cleaner{opts: opts, logger: logger}
}

// Clean normalizes raw listings and returns the cleaned rows. The input
// slice and its listings are left untouched.
func (c *Cleaner) Clean(raw []*models.Listing) []*models.Listing {
	rows := make([]*models.Listing, len(raw))
	for i, l := range raw {
		rows[i] = l.Clone()
	}

	rows = CleanYearOfProduction(rows, c.opts.DataYear)
	rows = CleanCaseDiameter(rows)
	rows = GroupCaseMaterial(rows, c.opts.MaterialThreshold)

	var unknownScope int
	rows, unknownScope = ProcessScopeOfDelivery(rows)
	if unknownScope > 0 {
		c.logger.Warn("[cleaner] %d listings with unrecognized scope of delivery, defaulting to no box/no papers", unknownScope)
	}

	before := len(rows)
	rows = CalculateTotalPrice(rows, c.opts.MaxShipping)
	c.logger.Debug("[cleaner] Shipping cap %.0f dropped %d listings", c.opts.MaxShipping, before-len(rows))

	rows = GroupLocation(rows, c.opts.LocationThreshold)

	before = len(rows)
	rows = DropIncomplete(rows)
	c.logger.Debug("[cleaner] Dropped %d listings without price or reference number", before-len(rows))

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(rows), len(raw)-len(rows))
	return rows
}

// CleanCaseSize parses a free-text case size such as "40 mm" or "40,5mm"
// into millimeters. Unparseable input and values outside [14, 60] give nil.
func CleanCaseSize(val string) *float64 {
	val = strings.TrimSpace(strings.ToLower(val))
	val = caseSizeJunkRegexp.ReplaceAllString(val, " ")

	match := caseSizeRegexp.FindStringSubmatch(val)
	if len(match) < 2 {
		return nil
	}

	num, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	if num < minCaseDiameter || num > maxCaseDiameter {
		return nil
	}
	return &num
}

// CleanCaseDiameter derives the numeric case diameter from the raw text.
func CleanCaseDiameter(rows []*models.Listing) []*models.Listing {
	for _, l := range rows {
		if l.CaseDiameterRaw == nil {
			l.CaseDiameter = nil
			continue
		}
		l.CaseDiameter = CleanCaseSize(*l.CaseDiameterRaw)
	}
	return rows
}

// CleanYearOfProduction nulls years outside [1905, dataYear] and derives
// age = dataYear - year. Age is left missing where the year is missing and
// is never clamped.
func CleanYearOfProduction(rows []*models.Listing, dataYear int) []*models.Listing {
	limit := float64(dataYear)
	for _, l := range rows {
		if l.Year != nil && (*l.Year > limit || *l.Year < minProductionYr) {
			l.Year = nil
		}
		if l.Year == nil {
			l.Age = nil
			continue
		}
		l.Age = models.Num(limit - *l.Year)
	}
	return rows
}

// GroupCaseMaterial copies case material into material_group, collapsing
// materials whose share of non-missing rows is below threshold into "Other".
func GroupCaseMaterial(rows []*models.Listing, threshold float64) []*models.Listing {
	for _, l := range rows {
		l.MaterialGroup = l.CaseMaterial
	}
	return CollapseRare(rows,
		func(l *models.Listing) *string { return l.MaterialGroup },
		func(l *models.Listing, v *string) { l.MaterialGroup = v },
		threshold)
}

// CollapseRare relabels every value whose share among non-missing values is
// strictly below threshold to "Other". Missing values are excluded from the
// share denominator and stay missing.
func CollapseRare(
	rows []*models.Listing,
	get func(*models.Listing) *string,
	set func(*models.Listing, *string),
	threshold float64,
) []*models.Listing {
	counts := make(map[string]int)
	total := 0
	for _, l := range rows {
		if v := get(l); v != nil {
			counts[*v]++
			total++
		}
	}
	if total == 0 {
		return rows
	}

	rare := make(map[string]bool)
	for v, n := range counts {
		if float64(n)/float64(total) < threshold {
			rare[v] = true
		}
	}

	other := models.Str(models.OtherCategory)
	for _, l := range rows {
		if v := get(l); v != nil && rare[*v] {
			set(l, other)
		}
	}
	return rows
}

// ProcessScopeOfDelivery derives has_box, has_papers and full_set. Descriptions
// outside the four known ones (missing included) count as no box and no
// papers; their number is returned.
func ProcessScopeOfDelivery(rows []*models.Listing) ([]*models.Listing, int) {
	unknown := 0
	for _, l := range rows {
		l.HasBox, l.HasPapers, l.FullSet = 0, 0, 0
		if l.ScopeOfDelivery == nil {
			unknown++
			continue
		}
		acc, ok := scopeOfDelivery[*l.ScopeOfDelivery]
		if !ok {
			unknown++
			continue
		}
		l.HasBox, l.HasPapers = acc.box, acc.papers
		if *l.ScopeOfDelivery == ScopeFullSet {
			l.FullSet = 1
		}
	}
	return rows, unknown
}

// CalculateTotalPrice drops listings whose shipping exceeds maxShipping (or
// is missing) and sets ship_total = price + shipping on the survivors.
func CalculateTotalPrice(rows []*models.Listing, maxShipping float64) []*models.Listing {
	kept := rows[:0:0]
	for _, l := range rows {
		if l.Shipping == nil || *l.Shipping > maxShipping {
			continue
		}
		if l.Price != nil {
			l.ShipTotal = models.Num(*l.Price + *l.Shipping)
		} else {
			l.ShipTotal = nil
		}
		kept = append(kept, l)
	}
	return kept
}

// GroupLocation extracts the country (text before the first comma) from the
// location and collapses rare countries into "Other".
func GroupLocation(rows []*models.Listing, threshold float64) []*models.Listing {
	for _, l := range rows {
		l.Country = nil
		if l.Location == nil {
			continue
		}
		country, _, _ := strings.Cut(*l.Location, ",")
		if country = strings.TrimSpace(country); country != "" {
			l.Country = models.Str(country)
		}
	}
	return CollapseRare(rows,
		func(l *models.Listing) *string { return l.Country },
		func(l *models.Listing, v *string) { l.Country = v },
		threshold)
}

// DropIncomplete removes listings lacking a price or a reference number.
func DropIncomplete(rows []*models.Listing) []*models.Listing {
	kept := rows[:0:0]
	for _, l := range rows {
		if l.Price == nil || l.Reference == nil || strings.TrimSpace(*l.Reference) == "" {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}
