package services

import (
	"bytes"
	"strings"
	"testing"

	"watch-market/models"
)

func sampleListings() []*models.Listing {
	mk := func(ref, model string, price float64, country string) *models.Listing {
		return &models.Listing{
			Reference: models.Str(ref), Model: models.Str(model),
			Price: models.Num(price), Country: models.Str(country),
		}
	}
	return []*models.Listing{
		mk("116610LN", "Submariner", 12000, "Germany"),
		mk("116610LN", "Submariner", 11000, "Germany"),
		mk("126500LN", "Daytona", 30000, "Japan"),
		mk("124060", "Submariner", 9500, "Other"),
		mk("124060", "Submariner", 0, "Japan"),
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 5 {
		t.Errorf("TotalListings: got %d, want 5", r.TotalListings)
	}
	if r.References != 3 {
		t.Errorf("References: got %d, want 3", r.References)
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.AveragePrice != 15625 {
		t.Errorf("AveragePrice: got %.2f, want 15625", r.AveragePrice)
	}
	if r.MinPrice != 9500 {
		t.Errorf("MinPrice: got %.2f, want 9500", r.MinPrice)
	}
	if r.MaxPrice != 30000 {
		t.Errorf("MaxPrice: got %.2f, want 30000", r.MaxPrice)
	}
	if r.MostExpensive == nil || r.MostExpensive.RefString() != "126500LN" {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
}

func TestInsightTopReferences(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if len(r.TopReferences) != 3 {
		t.Fatalf("TopReferences len: got %d, want 3", len(r.TopReferences))
	}
	if r.TopReferences[0].Reference != "116610LN" || r.TopReferences[1].Reference != "124060" {
		t.Errorf("TopReferences order: %+v", r.TopReferences)
	}
}

func TestInsightCountryGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.ListingsByCountry["Germany"] != 2 || r.ListingsByCountry["Japan"] != 2 {
		t.Errorf("ListingsByCountry: %v", r.ListingsByCountry)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(sampleListings()))
	if !strings.Contains(buf.String(), "126500LN Daytona") {
		t.Errorf("overview missing most expensive listing:\n%s", buf.String())
	}
}
