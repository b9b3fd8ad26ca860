package services

import (
	"math"
	"testing"

	"watch-market/models"
)

func agedListing(ref string, age, price float64) *models.Listing {
	return &models.Listing{Reference: models.Str(ref), Age: models.Num(age), Price: models.Num(price)}
}

func TestDepreciationTrends(t *testing.T) {
	var rows []*models.Listing
	for age := 0.0; age < 12; age++ {
		rows = append(rows, agedListing("FALLING", age, 20000-500*age))
		rows = append(rows, agedListing("RISING", age, 8000+300*age))
	}
	for i := 0; i < 12; i++ {
		rows = append(rows, agedListing("ONEAGE", 5, 9000+float64(i)))
	}
	for age := 0.0; age < 5; age++ {
		rows = append(rows, agedListing("FEW", age, 1000))
	}

	d := NewDepreciation(DefaultDepreciationOptions(), newTestLogger())
	trends := d.Trends(rows)

	if len(trends) != 2 {
		t.Fatalf("expected 2 trends, got %d: %+v", len(trends), trends)
	}
	if trends[0].Reference != "RISING" || trends[1].Reference != "FALLING" {
		t.Errorf("order: %s, %s", trends[0].Reference, trends[1].Reference)
	}

	falling := trends[1]
	if math.Abs(falling.Slope+500) > 1e-6 || math.Abs(falling.RSquared-1) > 1e-9 {
		t.Errorf("falling fit: %+v", falling)
	}
	if falling.DepreciationRate() <= 0 || !falling.Significant || falling.N != 12 {
		t.Errorf("falling trend: %+v", falling)
	}
	if math.Abs(falling.AvgPrice-(20000-500*5.5)) > 1e-6 {
		t.Errorf("avg price: got %v", falling.AvgPrice)
	}

	down := TopDepreciating(trends, 1)
	up := TopAppreciating(trends, 5)
	if len(down) != 1 || down[0].Reference != "FALLING" || len(up) != 2 || up[0].Reference != "RISING" {
		t.Errorf("top lists: %v / %v", down, up)
	}
}

func TestDepreciationMinListingsInclusive(t *testing.T) {
	var rows []*models.Listing
	for age := 0.0; age < 10; age++ {
		rows = append(rows, agedListing("TEN", age, 5000-10*age))
	}
	d := NewDepreciation(DefaultDepreciationOptions(), newTestLogger())
	if got := d.Trends(rows); len(got) != 1 {
		t.Errorf("a reference with exactly 10 listings should be fitted, got %d trends", len(got))
	}
}

func TestSignificantTrends(t *testing.T) {
	trends := []models.Trend{{Reference: "A", Significant: true}, {Reference: "B"}, {Reference: "C", Significant: true}}
	got := SignificantTrends(trends)
	if len(got) != 2 || got[0].Reference != "A" || got[1].Reference != "C" {
		t.Errorf("significant: %+v", got)
	}
}
