package services

import "watch-market/models"

// Level is one rung of an imputation cascade: rows sharing a key share a
// summary statistic. Key returns ok=false for rows that cannot be grouped.
type Level struct {
	Name string
	Key  func(*models.Listing) (string, bool)
}

var (
	// ByReference groups listings by reference number.
	ByReference = Level{Name: models.ColReference, Key: stringKey(func(l *models.Listing) *string { return l.Reference })}
	// ByModel groups listings by model name.
	ByModel = Level{Name: models.ColModel, Key: stringKey(func(l *models.Listing) *string { return l.Model })}
	// Global puts every listing in one group.
	Global = Level{Name: "global", Key: func(*models.Listing) (string, bool) { return "", true }}
)

func stringKey(get func(*models.Listing) *string) func(*models.Listing) (string, bool) {
	return func(l *models.Listing) (string, bool) {
		if p := get(l); p != nil {
			return *p, true
		}
		return "", false
	}
}

// Imputer fills the missing values of one field by walking Levels in order.
// At each level the statistic is computed per group over the values present
// at that point (earlier fills included) and copied into the group's missing
// rows. The cascade stops once nothing is missing.
type Imputer[T any] struct {
	Field  string
	Get    func(*models.Listing) (T, bool)
	Set    func(*models.Listing, T)
	Stat   func([]T) T
	Levels []Level
}

// ImputeResult reports how many values each level filled and how many
// remain missing after the cascade.
type ImputeResult struct {
	Field     string
	Filled    map[string]int
	Remaining int
}

// Impute fills rows in place.
func (im Imputer[T]) Impute(rows []*models.Listing) ImputeResult {
	res := ImputeResult{Field: im.Field, Filled: make(map[string]int, len(im.Levels))}
	res.Remaining = im.countMissing(rows)

	for _, lvl := range im.Levels {
		if res.Remaining == 0 {
			break
		}

		groups := make(map[string][]T)
		for _, l := range rows {
			v, ok := im.Get(l)
			if !ok {
				continue
			}
			if key, ok := lvl.Key(l); ok {
				groups[key] = append(groups[key], v)
			}
		}

		summary := make(map[string]T, len(groups))
		for key, values := range groups {
			summary[key] = im.Stat(values)
		}

		for _, l := range rows {
			if _, ok := im.Get(l); ok {
				continue
			}
			key, ok := lvl.Key(l)
			if !ok {
				continue
			}
			if v, ok := summary[key]; ok {
				im.Set(l, v)
				res.Filled[lvl.Name]++
				res.Remaining--
			}
		}
	}
	return res
}

func (im Imputer[T]) countMissing(rows []*models.Listing) int {
	n := 0
	for _, l := range rows {
		if _, ok := im.Get(l); !ok {
			n++
		}
	}
	return n
}

// NumericImputer builds a median cascade over a nullable numeric field.
func NumericImputer(field string, ptr func(*models.Listing) **float64, levels ...Level) Imputer[float64] {
	return Imputer[float64]{
		Field: field,
		Get: func(l *models.Listing) (float64, bool) {
			if p := *ptr(l); p != nil {
				return *p, true
			}
			return 0, false
		},
		Set:    func(l *models.Listing, v float64) { *ptr(l) = models.Num(v) },
		Stat:   Median,
		Levels: levels,
	}
}

// CategoricalImputer builds a mode cascade over a nullable text field.
func CategoricalImputer(field string, ptr func(*models.Listing) **string, levels ...Level) Imputer[string] {
	return Imputer[string]{
		Field: field,
		Get: func(l *models.Listing) (string, bool) {
			if p := *ptr(l); p != nil {
				return *p, true
			}
			return "", false
		},
		Set:    func(l *models.Listing, v string) { *ptr(l) = models.Str(v) },
		Stat:   Mode,
		Levels: levels,
	}
}
