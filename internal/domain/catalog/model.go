package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sample type classifications. The order here is the display order used by
// reporting.
const (
	SampleBlood  = "blood"
	SampleUrine  = "urine"
	SampleSaliva = "saliva"
	SampleTissue = "tissue"
	SampleOther  = "other"
)

var SampleTypes = []string{SampleBlood, SampleUrine, SampleSaliva, SampleTissue, SampleOther}

func ValidSampleType(s string) bool {
	for _, t := range SampleTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Test is a catalog item that can be booked.
type Test struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SampleType  string          `json:"sampleType"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"createdAt"`
	Parameters  []*Parameter    `json:"parameters,omitempty"`
}

// Parameter is a measurable quantity within a Test. Position orders the
// parameters of one test.
type Parameter struct {
	ID             uuid.UUID `json:"id"`
	TestID         uuid.UUID `json:"testId"`
	Position       int       `json:"position"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	RefRangeMale   string    `json:"refRangeMale"`
	RefRangeFemale string    `json:"refRangeFemale"`
	RefRangeChild  string    `json:"refRangeChild"`
}

type ParameterInput struct {
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	RefRangeMale   string `json:"refRangeMale"`
	RefRangeFemale string `json:"refRangeFemale"`
	RefRangeChild  string `json:"refRangeChild"`
}

type CreateTestRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	SampleType  string           `json:"sampleType"`
	Price       decimal.Decimal  `json:"price"`
	Parameters  []ParameterInput `json:"parameters"`
}

// UpdateTestRequest overwrites name, description and price. SampleType is
// applied only when set; Parameters replace the existing set only when
// non-empty.
type UpdateTestRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	SampleType  *string          `json:"sampleType"`
	Price       decimal.Decimal  `json:"price"`
	Parameters  []ParameterInput `json:"parameters"`
}

func buildParameters(testID uuid.UUID, in []ParameterInput) []*Parameter {
	out := make([]*Parameter, 0, len(in))
	for i, p := range in {
		out = append(out, &Parameter{
			ID:             uuid.New(),
			TestID:         testID,
			Position:       i,
			Name:           p.Name,
			Unit:           p.Unit,
			RefRangeMale:   p.RefRangeMale,
			RefRangeFemale: p.RefRangeFemale,
			RefRangeChild:  p.RefRangeChild,
		})
	}
	return out
}
