package storage

import "watch-market/models"

// ListingWriter is the interface any listing store must satisfy. Writes
// replace the whole table.
type ListingWriter interface {
	ReplaceListings(listings []*models.Listing, encoded []string) error
	Close() error
}

// TrendWriter persists the per-reference depreciation trends.
type TrendWriter interface {
	ReplaceTrends(trends []models.Trend) error
}

// DatasetWriter persists a dataset as a delimited file.
type DatasetWriter interface {
	WriteListings(columns []string, listings []*models.Listing) error
}
