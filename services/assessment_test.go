package services

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"watch-market/models"
)

type fakeSource struct {
	rows []*models.Listing
}

func (f *fakeSource) ListingsByReference(ref string) ([]*models.Listing, error) {
	var out []*models.Listing
	for _, l := range f.rows {
		if l.RefString() == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSource) ReferenceCounts(limit int) ([]models.ReferenceCount, error) {
	return []models.ReferenceCount{{Reference: "116610LN", Count: len(f.rows)}}, nil
}

func marketRows() []*models.Listing {
	var rows []*models.Listing
	for i := 0; i < 12; i++ {
		age := float64(i)
		l := &models.Listing{
			Reference: models.Str("116610LN"),
			Price:     models.Num(12000 - 200*age),
			Age:       models.Num(age),
			Condition: models.Str("Very good"),
		}
		if i%3 == 0 {
			l.Condition = models.Str("Unworn")
			l.FullSet, l.HasBox, l.HasPapers = 1, 1, 1
		}
		rows = append(rows, l)
	}
	return rows
}

func TestAssessRatingTiers(t *testing.T) {
	rows := marketRows()
	// Prices 9800..12000 step 200: Q1 10350, median 10900, Q3 11450.
	tests := []struct {
		price float64
		score int
	}{
		{9000, 90},
		{10350, 70},
		{10899, 70},
		{10900, 50},
		{11449, 50},
		{11450, 30},
		{20000, 30},
	}
	for _, tt := range tests {
		a := AssessAgainst("116610LN", tt.price, 3, rows, 1.5)
		if a.Score != tt.score {
			t.Errorf("price %v: score %d; want %d (%s)", tt.price, a.Score, tt.score, a.Rating)
		}
	}
}

func TestAssessStatistics(t *testing.T) {
	a := AssessAgainst("116610LN", 11000, 3, marketRows(), 1.5)

	if a.Market.Count != 12 || a.Market.Min != 9800 || a.Market.Max != 12000 {
		t.Errorf("market: %+v", a.Market)
	}
	if math.Abs(a.Market.Mean-10900) > 1e-9 || math.Abs(a.Market.Q1-10350) > 1e-9 {
		t.Errorf("market: %+v", a.Market)
	}
	// 9800..10800 are cheaper: 6 of 12.
	if a.Percentile != 50 {
		t.Errorf("percentile: got %v, want 50", a.Percentile)
	}
	if a.DiffMean != 100 {
		t.Errorf("diff vs mean: got %v", a.DiffMean)
	}
	if a.Position != models.PositionInside || a.Outliers != 0 {
		t.Errorf("position %s outliers %d", a.Position, a.Outliers)
	}
	if len(a.Closest) != 5 || a.Closest[0].Price != 11000 || a.Closest[0].Diff != 0 {
		t.Errorf("closest: %+v", a.Closest)
	}
	if len(a.ByCondition) != 2 || a.ByCondition[0].Label != "Unworn" || a.ByCondition[0].Count != 4 {
		t.Errorf("by condition: %+v", a.ByCondition)
	}
	if _, ok := a.FullSetPremium(); !ok {
		t.Error("expected a full set premium")
	}
	// Age 0 falls outside every left-open bucket.
	total := 0
	for _, g := range a.ByAge {
		total += g.Count
	}
	if total != 11 {
		t.Errorf("age buckets hold %d listings, want 11", total)
	}
}

func TestAssessTrendProjection(t *testing.T) {
	a := AssessAgainst("116610LN", 11000, 3, marketRows(), 1.5)
	tp := a.Trend
	if tp == nil {
		t.Fatal("expected a trend with 12 comparables")
	}
	if math.Abs(tp.Slope+200) > 1e-6 || !tp.Significant {
		t.Errorf("trend: %+v", tp)
	}
	if tp.PriceIn5y == nil || math.Abs(*tp.PriceIn5y-10400) > 1e-6 {
		t.Errorf("5y price: %v", tp.PriceIn5y)
	}
	if tp.Extrapolated {
		t.Error("age 8 is inside the data, projection should not be extrapolated")
	}

	few := AssessAgainst("116610LN", 11000, 3, marketRows()[:9], 1.5)
	if few.Trend != nil {
		t.Error("fewer than 10 comparables should not get a trend")
	}
}

func TestAssessorUnknownReference(t *testing.T) {
	a := NewAssessor(&fakeSource{rows: marketRows()}, 1.5, newTestLogger())

	_, err := a.Assess("999999", 1000, 1)
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("expected ErrUnknownReference, got %v", err)
	}
	var unknown *UnknownReferenceError
	if !errors.As(err, &unknown) || len(unknown.Suggestions) != 1 {
		t.Errorf("suggestions: %+v", unknown)
	}

	res, err := a.Assess(" 116610ln ", 11000, 3)
	if err != nil || res.Reference != "116610LN" {
		t.Errorf("lookup should normalise the reference: %v %v", res, err)
	}
}

func TestPrintAssessment(t *testing.T) {
	var buf bytes.Buffer
	PrintAssessment(&buf, AssessAgainst("116610LN", 11000, 3, marketRows(), 1.5))
	out := buf.String()
	for _, want := range []string{"Ref 116610LN", "$10,900", "Unworn", "Value retention"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMoney(t *testing.T) {
	tests := map[float64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-12500.4: "-12,500",
		-0.2:     "0",
	}
	for in, want := range tests {
		if got := money(in); got != want {
			t.Errorf("money(%v) = %q; want %q", in, got, want)
		}
	}
	if money(math.NaN()) != "-" {
		t.Error("NaN should print as -")
	}
}
