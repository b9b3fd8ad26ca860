package models

// PriceSummary describes the price distribution of a set of listings.
type PriceSummary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	Q1     float64
	Q3     float64
}

// GroupPrice is the price summary of one slice of comparables, e.g. one
// condition or one age bucket.
type GroupPrice struct {
	Label  string
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// Comparable is a market listing close to the assessed price.
type Comparable struct {
	Price     float64
	Diff      float64
	Condition string
	Age       *float64
	HasBox    int
	HasPapers int
}

// PricePosition tells where a price falls relative to the IQR range.
type PricePosition string

const (
	PositionBelow  PricePosition = "below"
	PositionInside PricePosition = "inside"
	PositionAbove  PricePosition = "above"
)

// TrendProjection is the age trend of the comparables projected onto the
// assessed watch.
type TrendProjection struct {
	N            int
	MinAge       float64
	MaxAge       float64
	Slope        float64
	Intercept    float64
	RSquared     float64
	PValue       float64
	Significant  bool
	AnnualRate   float64
	PriceNow     *float64
	PriceIn5y    *float64
	Retention5y  *float64
	Extrapolated bool
}

// Assessment is the evaluation of one seller price against listings of the
// same reference number.
type Assessment struct {
	Reference   string
	SellerPrice float64
	Age         float64

	Market        PriceSummary
	Percentile    float64
	DiffMean      float64
	DiffMedian    float64
	DiffMeanPct   float64
	DiffMedianPct float64

	Rating string
	Advice string
	Score  int

	ByCondition    []GroupPrice
	FullSetMean    *float64
	NotFullSetMean *float64
	ByAge          []GroupPrice
	Closest        []Comparable

	LowerBound float64
	UpperBound float64
	Outliers   int
	Position   PricePosition

	// Trend is nil when there are too few comparables or no age spread.
	Trend *TrendProjection
}

// FullSetPremium is the mean price difference between full-set listings and
// the rest; ok is false unless both groups exist.
func (a *Assessment) FullSetPremium() (premium float64, ok bool) {
	if a.FullSetMean == nil || a.NotFullSetMean == nil {
		return 0, false
	}
	return *a.FullSetMean - *a.NotFullSetMean, true
}

// MarketOverview holds the headline numbers of a processed dataset.
type MarketOverview struct {
	TotalListings     int
	References        int
	AveragePrice      float64
	MinPrice          float64
	MaxPrice          float64
	MostExpensive     *Listing
	TopReferences     []ReferenceCount
	ListingsByCountry map[string]int
}
