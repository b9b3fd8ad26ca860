package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"watch-market/models"
)

const rawCSV = "\ufeff" + `,ad name,reference number,model,price,additional shipping price,case diameter,case material,year of production,movement,condition,scope of delivery,location
0,Rolex Submariner Date,126610LN,Submariner,12500,50,41 mm,Steel,2021,Automatic,Very good,"Original box, original papers","Germany, Berlin"
1,Rolex Datejust,126300,Datejust,abc,NaN,,Steel,,,Unworn,,
`

func TestDecodeRawListings(t *testing.T) {
	listings, err := DecodeRawListings(strings.NewReader(rawCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	l := listings[0]
	if l.RefString() != "126610LN" || *l.Price != 12500 || *l.Shipping != 50 {
		t.Errorf("first listing: %+v", l)
	}
	if *l.CaseDiameterRaw != "41 mm" || *l.Year != 2021 || *l.ScopeOfDelivery != "Original box, original papers" {
		t.Errorf("first listing text fields: %+v", l)
	}

	m := listings[1]
	if m.Price != nil || m.Shipping != nil || m.Year != nil || m.CaseDiameterRaw != nil || m.Location != nil {
		t.Errorf("unparseable and empty cells should be missing: %+v", m)
	}
}

func TestDecodeRawListingsNonFiniteNumbers(t *testing.T) {
	header := ",ad name,reference number,model,price,aditional shipping price,case diameter,case material,year of production,movement,condition,scope of delivery,location\n"
	body := "0,a,116610LN,Submariner,Inf,+Infinity,,,1e400,,,,\n"
	listings, err := DecodeRawListings(strings.NewReader(header + body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := listings[0]
	if l.Price != nil || l.Shipping != nil || l.Year != nil {
		t.Errorf("non-finite cells should be missing: price %v shipping %v year %v", l.Price, l.Shipping, l.Year)
	}
}

func TestDecodeRawListingsMissingColumn(t *testing.T) {
	_, err := DecodeRawListings(strings.NewReader("ad name,price\nx,1\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "data.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	listings := []*models.Listing{{
		Reference: models.Str("126610LN"), Price: models.Num(12500), Age: models.Num(2),
		HasBox: 1, Encoded: map[string]int{models.ColMovement: 3},
	}}
	cols := []string{models.ColReference, models.ColPrice, models.ColAge, models.ColHasBox,
		models.ColCaseDiameter, models.ColMovement + models.EncodedSuffix}
	if err := w.WriteListings(cols, listings); err != nil {
		t.Fatalf("WriteListings: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "reference number,price,age,has_box,case diameter,movement_encoded\n126610LN,12500,2,1,,3\n"
	if string(b) != want {
		t.Errorf("file contents:\n%q\nwant\n%q", b, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
