package services

import (
	"sort"

	"watch-market/models"
)

// DefaultEncodeColumns are the categorical columns label-encoded by default.
var DefaultEncodeColumns = []string{
	models.ColMovement, models.ColCondition, models.ColMaterialGroup, models.ColCountry,
}

// Vocabulary is the sorted list of distinct values of one column; a value's
// code is its index.
type Vocabulary []string

// Code returns the label code of v.
func (v Vocabulary) Code(value string) (int, bool) {
	i := sort.SearchStrings(v, value)
	if i < len(v) && v[i] == value {
		return i, true
	}
	return 0, false
}

// Encoder assigns 0-based integer codes to categorical values in sorted
// order. It is fitted fresh on every run, so codes are only stable within
// one dataset.
type Encoder struct {
	vocabularies map[string]Vocabulary
	columns      []string
}

// NewEncoder creates an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{vocabularies: make(map[string]Vocabulary)}
}

// FitTransform fits a vocabulary per column and stores each row's code in
// Listing.Encoded under the column name. Columns that are not categorical
// are skipped. Missing values get no code.
func (e *Encoder) FitTransform(rows []*models.Listing, columns []string) []*models.Listing {
	for _, col := range columns {
		if !models.IsCategorical(col) {
			continue
		}

		seen := make(map[string]struct{})
		for _, l := range rows {
			if v, ok := l.Categorical(col); ok {
				seen[v] = struct{}{}
			}
		}
		vocab := make(Vocabulary, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)

		for _, l := range rows {
			if l.Encoded == nil {
				l.Encoded = make(map[string]int, len(columns))
			}
			v, ok := l.Categorical(col)
			if !ok {
				delete(l.Encoded, col)
				continue
			}
			code, _ := vocab.Code(v)
			l.Encoded[col] = code
		}

		if _, refit := e.vocabularies[col]; !refit {
			e.columns = append(e.columns, col)
		}
		e.vocabularies[col] = vocab
	}
	return rows
}

// Columns lists the columns encoded so far, in encoding order.
func (e *Encoder) Columns() []string { return e.columns }

// Vocabulary returns the fitted vocabulary of column.
func (e *Encoder) Vocabulary(column string) (Vocabulary, bool) {
	v, ok := e.vocabularies[column]
	return v, ok
}
