package services

import (
	"sort"

	"watch-market/models"
	"watch-market/utils"
)

// DepreciationOptions decide which references get a trend and which trends
// count as significant.
type DepreciationOptions struct {
	MinListings int
	MaxPValue   float64
	MinRSquared float64
}

// DefaultDepreciationOptions: at least 10 listings, p < 0.05 and R² > 0.3.
func DefaultDepreciationOptions() DepreciationOptions {
	return DepreciationOptions{MinListings: 10, MaxPValue: 0.05, MinRSquared: 0.3}
}

// Depreciation fits a price-vs-age line per reference number.
type Depreciation struct {
	opts   DepreciationOptions
	logger *utils.Logger
}

// NewDepreciation creates a Depreciation service.
func NewDepreciation(opts DepreciationOptions, logger *utils.Logger) *Depreciation {
	return &Depreciation{opts: opts, logger: logger}
}

// Trends fits every reference number with enough listings and at least two
// distinct ages. The result is sorted by slope, steepest appreciation first.
func (d *Depreciation) Trends(rows []*models.Listing) []models.Trend {
	type series struct{ ages, prices []float64 }
	byRef := make(map[string]*series)
	var order []string
	for _, l := range rows {
		if l.Reference == nil || l.Age == nil || l.Price == nil {
			continue
		}
		s, ok := byRef[*l.Reference]
		if !ok {
			s = &series{}
			byRef[*l.Reference] = s
			order = append(order, *l.Reference)
		}
		s.ages = append(s.ages, *l.Age)
		s.prices = append(s.prices, *l.Price)
	}

	var trends []models.Trend
	for _, ref := range order {
		s := byRef[ref]
		if len(s.ages) < d.opts.MinListings || distinct(s.ages) < 2 {
			continue
		}
		fit, ok := FitLine(s.ages, s.prices)
		if !ok {
			continue
		}
		t := models.Trend{
			Reference: ref,
			Slope:     fit.Slope,
			Intercept: fit.Intercept,
			RSquared:  fit.RSquared,
			PValue:    fit.PValue,
			AvgPrice:  Mean(s.prices),
			N:         len(s.prices),
		}
		t.Significant = t.PValue < d.opts.MaxPValue && t.RSquared > d.opts.MinRSquared
		trends = append(trends, t)
	}

	sort.SliceStable(trends, func(i, j int) bool { return trends[i].Slope > trends[j].Slope })
	d.logger.Info("[depreciation] Fitted %d reference numbers (%d significant)",
		len(trends), len(SignificantTrends(trends)))
	return trends
}

// SignificantTrends keeps the trends flagged significant, order preserved.
func SignificantTrends(trends []models.Trend) []models.Trend {
	var out []models.Trend
	for _, t := range trends {
		if t.Significant {
			out = append(out, t)
		}
	}
	return out
}

// TopDepreciating returns up to n trends with the most negative slope.
func TopDepreciating(trends []models.Trend, n int) []models.Trend {
	out := append([]models.Trend(nil), trends...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slope < out[j].Slope })
	return head(out, n)
}

// TopAppreciating returns up to n trends with the most positive slope.
func TopAppreciating(trends []models.Trend, n int) []models.Trend {
	out := append([]models.Trend(nil), trends...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slope > out[j].Slope })
	return head(out, n)
}

func head(trends []models.Trend, n int) []models.Trend {
	if n >= 0 && len(trends) > n {
		return trends[:n]
	}
	return trends
}

func distinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
