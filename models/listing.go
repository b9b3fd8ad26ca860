package models

import "strings"

// Column names as they appear in the scraped input and the stage outputs.
const (
	ColAdName          = "ad name"
	ColReference       = "reference number"
	ColModel           = "model"
	ColPrice           = "price"
	ColShipping        = "aditional shipping price"
	ColCaseDiameter    = "case diameter"
	ColCaseMaterial    = "case material"
	ColYear            = "year of production"
	ColMovement        = "movement"
	ColCondition       = "condition"
	ColScopeOfDelivery = "scope of delivery"
	ColLocation        = "location"

	ColAge           = "age"
	ColMaterialGroup = "material_group"
	ColHasBox        = "has_box"
	ColHasPapers     = "has_papers"
	ColFullSet       = "full_set"
	ColShipTotal     = "ship_total"
	ColCountry       = "country"

	// EncodedSuffix is appended to a categorical column name to form its code column.
	EncodedSuffix = "_encoded"
)

// OtherCategory is the shared bucket rare categories collapse into.
const OtherCategory = "Other"

// RawColumns is the fixed column set expected in the scraped input file.
var RawColumns = []string{
	ColAdName, ColReference, ColModel, ColPrice, ColShipping, ColCaseDiameter,
	ColCaseMaterial, ColYear, ColMovement, ColCondition, ColScopeOfDelivery, ColLocation,
}

// CleanedColumns is the Stage A output schema.
var CleanedColumns = append(append([]string{}, RawColumns...),
	ColAge, ColMaterialGroup, ColHasBox, ColHasPapers, ColFullSet, ColShipTotal, ColCountry)

// ProcessedBaseColumns is the Stage B output schema before the encoded columns
// are appended.
var ProcessedBaseColumns = []string{
	ColReference, ColModel, ColPrice, ColShipping, ColCaseDiameter, ColMovement,
	ColCondition, ColAge, ColMaterialGroup, ColHasBox, ColHasPapers, ColFullSet,
	ColShipTotal, ColCountry,
}

// Listing is one marketplace listing as it moves through the pipeline.
// Nil pointer fields are missing values, distinct from zero or "".
//
// The raw fields are populated on load; Stage A fills the derived
// fields; Stage B imputes and encodes in place.
type Listing struct {
	AdName          *string
	Reference       *string
	Model           *string
	Price           *float64
	Shipping        *float64
	CaseDiameterRaw *string
	CaseDiameter    *float64
	CaseMaterial    *string
	Year            *float64
	Movement        *string
	Condition       *string
	ScopeOfDelivery *string
	Location        *string

	Age           *float64
	MaterialGroup *string
	HasBox        int
	HasPapers     int
	FullSet       int
	ShipTotal     *float64
	Country       *string

	// Encoded holds the label code per encoded column name, e.g. "movement".
	Encoded map[string]int
}

// Clone returns a copy of l. Pointer fields are shared; every pipeline step
// replaces pointers rather than writing through them.
func (l *Listing) Clone() *Listing {
	c := *l
	if l.Encoded != nil {
		c.Encoded = make(map[string]int, len(l.Encoded))
		for k, v := range l.Encoded {
			c.Encoded[k] = v
		}
	}
	return &c
}

// Categorical returns the text value of a categorical column by name.
// ok is false when the column is unknown or the value is missing.
func (l *Listing) Categorical(column string) (value string, ok bool) {
	var p *string
	switch column {
	case ColReference:
		p = l.Reference
	case ColModel:
		p = l.Model
	case ColMovement:
		p = l.Movement
	case ColCondition:
		p = l.Condition
	case ColMaterialGroup:
		p = l.MaterialGroup
	case ColCountry:
		p = l.Country
	case ColCaseMaterial:
		p = l.CaseMaterial
	case ColScopeOfDelivery:
		p = l.ScopeOfDelivery
	case ColLocation:
		p = l.Location
	case ColAdName:
		p = l.AdName
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// IsCategorical reports whether column can be read through Categorical.
func IsCategorical(column string) bool {
	switch column {
	case ColReference, ColModel, ColMovement, ColCondition, ColMaterialGroup,
		ColCountry, ColCaseMaterial, ColScopeOfDelivery, ColLocation, ColAdName:
		return true
	}
	return false
}

// RefString returns the reference number or "" when missing.
func (l *Listing) RefString() string {
	if l.Reference == nil {
		return ""
	}
	return *l.Reference
}

// Str returns a pointer to a copy of s.
func Str(s string) *string { return &s }

// Num returns a pointer to a copy of f.
func Num(f float64) *float64 { return &f }

// Trend is the fitted price-vs-age line for one reference number.
type Trend struct {
	Reference   string
	Slope       float64
	Intercept   float64
	RSquared    float64
	PValue      float64
	AvgPrice    float64
	N           int
	Significant bool
}

// DepreciationRate is the yearly value lost (positive when prices fall with age).
func (t Trend) DepreciationRate() float64 { return -t.Slope }

// ReferenceCount is a group-by row: listings per reference number.
type ReferenceCount struct {
	Reference string
	Count     int
}

// Value returns the value of column as string, float64 or int, or nil when
// the value is missing or the column unknown. "<col>_encoded" columns read
// the label code of <col>.
func (l *Listing) Value(column string) any {
	if IsCategorical(column) {
		if v, ok := l.Categorical(column); ok {
			return v
		}
		return nil
	}

	var p *float64
	switch column {
	case ColPrice:
		p = l.Price
	case ColShipping:
		p = l.Shipping
	case ColCaseDiameter:
		p = l.CaseDiameter
	case ColYear:
		p = l.Year
	case ColAge:
		p = l.Age
	case ColShipTotal:
		p = l.ShipTotal
	case ColHasBox:
		return l.HasBox
	case ColHasPapers:
		return l.HasPapers
	case ColFullSet:
		return l.FullSet
	default:
		if base, ok := strings.CutSuffix(column, EncodedSuffix); ok {
			if code, ok := l.Encoded[base]; ok {
				return code
			}
		}
		return nil
	}
	if p == nil {
		return nil
	}
	return *p
}
