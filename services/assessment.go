package services

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"watch-market/models"
	"watch-market/utils"
)

// ErrUnknownReference is returned when no listing matches the reference number.
var ErrUnknownReference = errors.New("unknown reference number")

// UnknownReferenceError carries the most listed reference numbers as suggestions.
type UnknownReferenceError struct {
	Reference   string
	Suggestions []models.ReferenceCount
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownReference, e.Reference)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// ListingSource is the read side of the listing store the assessor needs.
type ListingSource interface {
	ListingsByReference(reference string) ([]*models.Listing, error)
	ReferenceCounts(limit int) ([]models.ReferenceCount, error)
}

// ConditionOrder is the marketplace's condition scale, best first.
var ConditionOrder = []string{"New", "Unworn", "Very good", "Good", "Fair", "Poor", "Incomplete"}

type ageBucket struct {
	label      string
	lower, top float64
}

// Buckets are left-open, right-closed: (lower, top].
var ageBuckets = []ageBucket{
	{"<2y", 0, 2},
	{"2-5y", 2, 5},
	{"5-10y", 5, 10},
	{"10-20y", 10, 20},
	{">20y", 20, 100},
}

const (
	trendMinComparables = 10
	closestComparables  = 5
	suggestionCount     = 10
	significanceLevel   = 0.05
	projectionYears     = 5.0
)

// Assessor evaluates seller prices against the stored market.
type Assessor struct {
	source        ListingSource
	iqrMultiplier float64
	logger        *utils.Logger
}

// NewAssessor creates an Assessor reading comparables from source.
func NewAssessor(source ListingSource, iqrMultiplier float64, logger *utils.Logger) *Assessor {
	return &Assessor{source: source, iqrMultiplier: iqrMultiplier, logger: logger}
}

// Assess evaluates sellerPrice for a watch of the given reference number and
// age. Unknown references give an *UnknownReferenceError.
func (a *Assessor) Assess(reference string, sellerPrice, age float64) (*models.Assessment, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))

	comparables, err := a.source.ListingsByReference(reference)
	if err != nil {
		return nil, fmt.Errorf("assess: load comparables: %w", err)
	}
	if len(comparables) == 0 {
		suggestions, err := a.source.ReferenceCounts(suggestionCount)
		if err != nil {
			a.logger.Warn("[assess] Could not load reference suggestions: %v", err)
		}
		return nil, &UnknownReferenceError{Reference: reference, Suggestions: suggestions}
	}
	a.logger.Debug("[assess] %d comparables for %s", len(comparables), reference)

	return AssessAgainst(reference, sellerPrice, age, comparables, a.iqrMultiplier), nil
}

// AssessAgainst evaluates sellerPrice against comparables, which must be
// non-empty and all carry a price.
func AssessAgainst(reference string, sellerPrice, age float64, comparables []*models.Listing, iqrMultiplier float64) *models.Assessment {
	ps := prices(comparables)
	market := summarize(ps)

	res := &models.Assessment{
		Reference:   reference,
		SellerPrice: sellerPrice,
		Age:         age,
		Market:      market,
		DiffMean:    sellerPrice - market.Mean,
		DiffMedian:  sellerPrice - market.Median,
	}
	res.DiffMeanPct = res.DiffMean / market.Mean * 100
	res.DiffMedianPct = res.DiffMedian / market.Median * 100

	cheaper := 0
	for _, p := range ps {
		if p < sellerPrice {
			cheaper++
		}
	}
	res.Percentile = float64(cheaper) / float64(len(ps)) * 100

	switch {
	case sellerPrice < market.Q1:
		res.Rating, res.Score = "Low (below 25% of the market)", 90
		res.Advice = "Priced in the cheaper part of the market"
	case sellerPrice < market.Median:
		res.Rating, res.Score = "Below median", 70
		res.Advice = "Below the market median, a reasonable range"
	case sellerPrice < market.Q3:
		res.Rating, res.Score = "Upper middle", 50
		res.Advice = "Slightly above average, a common market range"
	default:
		res.Rating, res.Score = "High (above 75% of the market)", 30
		res.Advice = "In the expensive part of the market, compare more listings"
	}

	res.ByCondition = byCondition(comparables)
	res.FullSetMean, res.NotFullSetMean = fullSetMeans(comparables)
	res.ByAge = byAge(comparables)
	res.Closest = closest(comparables, sellerPrice, closestComparables)

	res.LowerBound, res.UpperBound = IQRBounds(ps, iqrMultiplier)
	for _, p := range ps {
		if p < res.LowerBound || p > res.UpperBound {
			res.Outliers++
		}
	}
	switch {
	case sellerPrice < res.LowerBound:
		res.Position = models.PositionBelow
	case sellerPrice > res.UpperBound:
		res.Position = models.PositionAbove
	default:
		res.Position = models.PositionInside
	}

	if len(comparables) >= trendMinComparables {
		res.Trend = project(comparables, age)
	}
	return res
}

func summarize(ps []float64) models.PriceSummary {
	s := sortedCopy(ps)
	return models.PriceSummary{
		Count:  len(s),
		Mean:   Mean(s),
		Median: Quantile(s, 0.5),
		StdDev: StdDev(s),
		Min:    s[0],
		Max:    s[len(s)-1],
		Q1:     Quantile(s, 0.25),
		Q3:     Quantile(s, 0.75),
	}
}

func groupPrice(label string, ps []float64) models.GroupPrice {
	g := models.GroupPrice{Label: label, Count: len(ps)}
	if len(ps) == 0 {
		g.Mean, g.Median, g.Min, g.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return g
	}
	s := summarize(ps)
	g.Mean, g.Median, g.Min, g.Max = s.Mean, s.Median, s.Min, s.Max
	return g
}

func byCondition(rows []*models.Listing) []models.GroupPrice {
	groups := make(map[string][]float64)
	for _, l := range rows {
		if l.Condition != nil {
			groups[*l.Condition] = append(groups[*l.Condition], *l.Price)
		}
	}

	var out []models.GroupPrice
	known := make(map[string]bool, len(ConditionOrder))
	for _, c := range ConditionOrder {
		known[c] = true
		if ps, ok := groups[c]; ok {
			out = append(out, groupPrice(c, ps))
		}
	}
	var rest []string
	for c := range groups {
		if !known[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		out = append(out, groupPrice(c, groups[c]))
	}
	return out
}

func fullSetMeans(rows []*models.Listing) (full, notFull *float64) {
	var yes, no []float64
	for _, l := range rows {
		if l.FullSet == 1 {
			yes = append(yes, *l.Price)
		} else {
			no = append(no, *l.Price)
		}
	}
	if len(yes) > 0 {
		full = models.Num(Mean(yes))
	}
	if len(no) > 0 {
		notFull = models.Num(Mean(no))
	}
	return full, notFull
}

func byAge(rows []*models.Listing) []models.GroupPrice {
	buckets := make([][]float64, len(ageBuckets))
	for _, l := range rows {
		if l.Age == nil {
			continue
		}
		for i, b := range ageBuckets {
			if *l.Age > b.lower && *l.Age <= b.top {
				buckets[i] = append(buckets[i], *l.Price)
				break
			}
		}
	}
	out := make([]models.GroupPrice, len(ageBuckets))
	for i, b := range ageBuckets {
		out[i] = groupPrice(b.label, buckets[i])
	}
	return out
}

func closest(rows []*models.Listing, sellerPrice float64, n int) []models.Comparable {
	out := make([]models.Comparable, 0, len(rows))
	for _, l := range rows {
		c := models.Comparable{
			Price:     *l.Price,
			Diff:      math.Abs(*l.Price - sellerPrice),
			Age:       l.Age,
			HasBox:    l.HasBox,
			HasPapers: l.HasPapers,
		}
		if l.Condition != nil {
			c.Condition = *l.Condition
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Diff < out[j].Diff })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func project(rows []*models.Listing, age float64) *models.TrendProjection {
	var ages, ps []float64
	for _, l := range rows {
		if l.Age != nil {
			ages = append(ages, *l.Age)
			ps = append(ps, *l.Price)
		}
	}
	fit, ok := FitLine(ages, ps)
	if !ok {
		return nil
	}

	sorted := sortedCopy(ages)
	tp := &models.TrendProjection{
		N:           len(ages),
		MinAge:      sorted[0],
		MaxAge:      sorted[len(sorted)-1],
		Slope:       fit.Slope,
		Intercept:   fit.Intercept,
		RSquared:    fit.RSquared,
		PValue:      fit.PValue,
		Significant: fit.PValue < significanceLevel,
	}
	if fit.Intercept != 0 {
		tp.AnnualRate = fit.Slope / fit.Intercept * 100
	}
	if fit.Intercept > 0 {
		now := fit.Slope*age + fit.Intercept
		later := fit.Slope*(age+projectionYears) + fit.Intercept
		tp.PriceNow = models.Num(now)
		tp.PriceIn5y = models.Num(later)
		if later > 0 && now != 0 {
			tp.Retention5y = models.Num(later / now * 100)
		}
		tp.Extrapolated = tp.MaxAge < age+projectionYears
	}
	return tp
}

// PrintAssessment writes a plain-text report of a to w.
func PrintAssessment(w io.Writer, a *models.Assessment) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	row := func(label, format string, args ...any) {
		fmt.Fprintf(w, "  %s : %s\n", runewidth.FillRight(label, 22), fmt.Sprintf(format, args...))
	}

	fmt.Fprintf(w, "\n%s\n  PRICE ASSESSMENT · Ref %s\n%s\n\n", sep, a.Reference, sep)

	fmt.Fprintf(w, "  Market (%d listings)\n  %s\n", a.Market.Count, thin)
	row("Mean", "$%s", money(a.Market.Mean))
	row("Median", "$%s", money(a.Market.Median))
	row("Std deviation", "$%s", money(a.Market.StdDev))
	row("Min / Max", "$%s / $%s", money(a.Market.Min), money(a.Market.Max))
	row("Q1 / Q3", "$%s / $%s", money(a.Market.Q1), money(a.Market.Q3))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Seller price\n  %s\n", thin)
	row("Asking", "$%s", money(a.SellerPrice))
	row("Percentile", "%.1f%% of listings are cheaper", a.Percentile)
	row("vs mean", "%+.0f (%+.1f%%)", a.DiffMean, a.DiffMeanPct)
	row("vs median", "%+.0f (%+.1f%%)", a.DiffMedian, a.DiffMedianPct)
	row("Rating", "%s", a.Rating)
	row("Score", "%d/100", a.Score)
	row("Advice", "%s", a.Advice)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  By condition\n  %s\n", thin)
	for _, g := range a.ByCondition {
		row(g.Label, "%3d × mean $%s  median $%s", g.Count, money(g.Mean), money(g.Median))
	}
	if premium, ok := a.FullSetPremium(); ok {
		row("Full set premium", "$%s ($%s vs $%s)", money(premium), money(*a.FullSetMean), money(*a.NotFullSetMean))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  By age\n  %s\n", thin)
	for _, g := range a.ByAge {
		row(g.Label, "%3d × mean $%s", g.Count, money(g.Mean))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Closest listings\n  %s\n", thin)
	for i, c := range a.Closest {
		age := "?"
		if c.Age != nil {
			age = fmt.Sprintf("%.0fy", *c.Age)
		}
		fmt.Fprintf(w, "  %d. $%s (±%s) %s, %s, box=%d papers=%d\n",
			i+1, money(c.Price), money(c.Diff), runewidth.Truncate(c.Condition, 20, "…"), age, c.HasBox, c.HasPapers)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Outliers\n  %s\n", thin)
	row("Normal range", "$%s - $%s", money(a.LowerBound), money(a.UpperBound))
	row("Outlier listings", "%d", a.Outliers)
	row("Asking price", "%s the normal range", a.Position)
	fmt.Fprintln(w)

	if t := a.Trend; t != nil {
		fmt.Fprintf(w, "  Value retention (%d listings, age %.0f-%.0f)\n  %s\n", t.N, t.MinAge, t.MaxAge, thin)
		row("p-value", "%.4f (significant: %t)", t.PValue, t.Significant)
		row("R²", "%.3f", t.RSquared)
		row("Per year", "%+.0f (%+.2f%%)", t.Slope, t.AnnualRate)
		if t.PriceIn5y != nil {
			row("In 5 years", "$%s", money(*t.PriceIn5y))
		}
		if t.Retention5y != nil {
			row("5y retention", "%.1f%%", *t.Retention5y)
		}
		if t.Intercept <= 0 {
			row("Warning", "model predicts $%s for a new watch", money(t.Intercept))
		}
		if t.Extrapolated {
			row("Warning", "data only reaches age %.0f, projection is extrapolated", t.MaxAge)
		}
	} else {
		fmt.Fprintf(w, "  Fewer than %d listings with age spread, no value retention trend\n", trendMinComparables)
	}
	fmt.Fprintf(w, "\n%s\n\n", sep)
}

// money formats f with thousands separators and no decimals; NaN prints "-".
func money(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	neg := f < 0
	s := fmt.Sprintf("%.0f", math.Abs(f))
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg && s != "0" {
		return "-" + b.String()
	}
	return b.String()
}
