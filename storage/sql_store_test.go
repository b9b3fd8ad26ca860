package storage

import (
	"path/filepath"
	"testing"

	"watch-market/models"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenStore(DriverSQLite, filepath.Join(t.TempDir(), "watches.db"), nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedListing(ref string, price float64) *models.Listing {
	return &models.Listing{
		Reference: models.Str(ref), Model: models.Str("Submariner"), Price: models.Num(price),
		Shipping: models.Num(0), ShipTotal: models.Num(price), Age: models.Num(3),
		Condition: models.Str("Very good"), Movement: models.Str("Automatic"),
		FullSet: 1, HasBox: 1, HasPapers: 1,
		Encoded: map[string]int{models.ColMovement: 0, models.ColCondition: 2},
	}
}

func TestSQLStoreListings(t *testing.T) {
	s := openTestStore(t)
	encoded := []string{models.ColMovement, models.ColCondition}

	listings := []*models.Listing{storedListing("116610LN", 12000), storedListing("124060", 9000), storedListing("116610LN", 11000)}
	listings[2].CaseDiameter = models.Num(40)
	if err := s.ReplaceListings(listings, encoded); err != nil {
		t.Fatalf("ReplaceListings: %v", err)
	}

	got, err := s.ListingsByReference("116610LN")
	if err != nil {
		t.Fatalf("ListingsByReference: %v", err)
	}
	if len(got) != 2 || *got[0].Price != 12000 || *got[1].Price != 11000 {
		t.Fatalf("listings: %+v", got)
	}
	if got[0].CaseDiameter != nil || got[1].CaseDiameter == nil || *got[1].CaseDiameter != 40 {
		t.Error("missing values should round trip as missing")
	}
	if got[0].FullSet != 1 || *got[0].Condition != "Very good" || *got[0].Age != 3 {
		t.Errorf("listing fields: %+v", got[0])
	}

	counts, err := s.ReferenceCounts(1)
	if err != nil {
		t.Fatalf("ReferenceCounts: %v", err)
	}
	if len(counts) != 1 || counts[0].Reference != "116610LN" || counts[0].Count != 2 {
		t.Errorf("counts: %+v", counts)
	}

	// A second write replaces the table.
	if err := s.ReplaceListings(listings[1:2], encoded); err != nil {
		t.Fatalf("ReplaceListings: %v", err)
	}
	got, _ = s.ListingsByReference("116610LN")
	if len(got) != 0 {
		t.Errorf("expected the table to be replaced, found %d old rows", len(got))
	}
}

func TestSQLStoreManyBatches(t *testing.T) {
	s := openTestStore(t)
	var listings []*models.Listing
	for i := 0; i < 2*batchSize+7; i++ {
		listings = append(listings, storedListing("116610LN", float64(10000+i)))
	}
	if err := s.ReplaceListings(listings, nil); err != nil {
		t.Fatalf("ReplaceListings: %v", err)
	}
	got, err := s.ListingsByReference("116610LN")
	if err != nil || len(got) != len(listings) {
		t.Fatalf("got %d listings, err %v", len(got), err)
	}
	if *got[len(got)-1].Price != float64(10000+len(listings)-1) {
		t.Error("stored order should follow insertion order")
	}
}

func TestSQLStoreTrends(t *testing.T) {
	s := openTestStore(t)
	trends := []models.Trend{
		{Reference: "A", Slope: -500, Intercept: 20000, RSquared: 0.9, PValue: 0.001, AvgPrice: 17000, N: 12, Significant: true},
		{Reference: "B", Slope: 300, Intercept: 8000, RSquared: 0.2, PValue: 0.2, AvgPrice: 9000, N: 15},
	}
	if err := s.ReplaceTrends(trends); err != nil {
		t.Fatalf("ReplaceTrends: %v", err)
	}
	got, err := s.Trends()
	if err != nil {
		t.Fatalf("Trends: %v", err)
	}
	if len(got) != 2 || got[0].Reference != "B" || !got[1].Significant || got[1].N != 12 {
		t.Errorf("trends: %+v", got)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	if _, err := OpenStore("mysql", "", nil); err == nil {
		t.Error("expected an error for an unsupported driver")
	}
}
