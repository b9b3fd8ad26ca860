package services

import (
	"math"
	"sort"

	"watch-market/models"
	"watch-market/utils"
)

// PreprocessorOptions are the Stage B tunables.
type PreprocessorOptions struct {
	IQRMultiplier float64
	EncodeColumns []string
}

// DefaultPreprocessorOptions returns k = 1.5 and the default encoded columns.
func DefaultPreprocessorOptions() PreprocessorOptions {
	return PreprocessorOptions{
		IQRMultiplier: 1.5,
		EncodeColumns: append([]string(nil), DefaultEncodeColumns...),
	}
}

// Preprocessor runs Stage B: outlier removal, imputation and encoding.
type Preprocessor struct {
	opts   PreprocessorOptions
	logger *utils.Logger
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(opts PreprocessorOptions, logger *utils.Logger) *Preprocessor {
	return &Preprocessor{opts: opts, logger: logger}
}

// Processed is the Stage B output.
type Processed struct {
	Rows    []*models.Listing
	Encoder *Encoder
	Imputed []ImputeResult
}

// Process runs Stage B over cleaned rows. The input is left untouched.
func (p *Preprocessor) Process(cleaned []*models.Listing) *Processed {
	rows := make([]*models.Listing, len(cleaned))
	for i, l := range cleaned {
		rows[i] = l.Clone()
	}

	rows = DropIncomplete(rows)

	before := len(rows)
	rows = RemoveOutliers(rows, p.opts.IQRMultiplier)
	p.logger.Info("[preprocess] IQR filter (k=%.2f) removed %d of %d listings",
		p.opts.IQRMultiplier, before-len(rows), before)

	results := ImputeAll(rows)
	for _, r := range results {
		p.logger.Debug("[preprocess] Imputed %s: filled %v, %d still missing", r.Field, r.Filled, r.Remaining)
		if r.Remaining > 0 {
			p.logger.Warn("[preprocess] %d listings still missing %s after imputation", r.Remaining, r.Field)
		}
	}
	ConvertPricesToInt(rows)

	enc := NewEncoder()
	rows = enc.FitTransform(rows, p.opts.EncodeColumns)
	for _, col := range enc.Columns() {
		vocab, _ := enc.Vocabulary(col)
		p.logger.Debug("[preprocess] Encoded %s with %d codes", col, len(vocab))
	}

	return &Processed{Rows: rows, Encoder: enc, Imputed: results}
}

// RemoveOutliers keeps, within each reference number, the listings whose
// price lies in [Q1 - k*IQR, Q3 + k*IQR]. Groups of any size get bounds.
// The result is ordered by reference number, stable within a group.
func RemoveOutliers(rows []*models.Listing, k float64) []*models.Listing {
	groups := make(map[string][]*models.Listing)
	for _, l := range rows {
		if l.Reference == nil || l.Price == nil {
			continue
		}
		groups[*l.Reference] = append(groups[*l.Reference], l)
	}

	refs := make([]string, 0, len(groups))
	for ref := range groups {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	kept := make([]*models.Listing, 0, len(rows))
	for _, ref := range refs {
		group := groups[ref]
		lower, upper := IQRBounds(prices(group), k)
		for _, l := range group {
			if *l.Price >= lower && *l.Price <= upper {
				kept = append(kept, l)
			}
		}
	}
	return kept
}

// IQRBounds returns [Q1 - k*IQR, Q3 + k*IQR] for values.
func IQRBounds(values []float64, k float64) (lower, upper float64) {
	s := sortedCopy(values)
	q1 := Quantile(s, 0.25)
	q3 := Quantile(s, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// ImputeAll runs the imputation cascades: age and case diameter by median,
// movement and material group by mode (reference number, then model), and
// condition by the global mode. Age is then truncated to whole years.
func ImputeAll(rows []*models.Listing) []ImputeResult {
	age := NumericImputer(models.ColAge,
		func(l *models.Listing) **float64 { return &l.Age }, ByReference, ByModel)
	diameter := NumericImputer(models.ColCaseDiameter,
		func(l *models.Listing) **float64 { return &l.CaseDiameter }, ByReference, ByModel)
	movement := CategoricalImputer(models.ColMovement,
		func(l *models.Listing) **string { return &l.Movement }, ByReference, ByModel)
	material := CategoricalImputer(models.ColMaterialGroup,
		func(l *models.Listing) **string { return &l.MaterialGroup }, ByReference, ByModel)
	condition := CategoricalImputer(models.ColCondition,
		func(l *models.Listing) **string { return &l.Condition }, Global)

	results := []ImputeResult{
		age.Impute(rows),
		diameter.Impute(rows),
		movement.Impute(rows),
		material.Impute(rows),
		condition.Impute(rows),
	}

	for _, l := range rows {
		if l.Age != nil {
			l.Age = models.Num(math.Trunc(*l.Age))
		}
	}
	return results
}

// ConvertPricesToInt truncates price, shipping and ship_total to whole units.
func ConvertPricesToInt(rows []*models.Listing) {
	for _, l := range rows {
		for _, p := range []**float64{&l.Price, &l.Shipping, &l.ShipTotal} {
			if *p != nil {
				*p = models.Num(math.Trunc(**p))
			}
		}
	}
}

func prices(rows []*models.Listing) []float64 {
	out := make([]float64, 0, len(rows))
	for _, l := range rows {
		if l.Price != nil {
			out = append(out, *l.Price)
		}
	}
	return out
}
