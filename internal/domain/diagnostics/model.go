package diagnostics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/domain/billing"
)

// Order statuses.
const (
	OrderPending   = "PENDING"
	OrderCompleted = "COMPLETED"
	OrderCancelled = "CANCELLED"
)

func ValidOrderStatus(s string) bool {
	return s == OrderPending || s == OrderCompleted || s == OrderCancelled
}

// Sample statuses.
const (
	SampleCollectionPending = "COLLECTION_PENDING"
	SampleCollected         = "COLLECTED"
	SampleInTransit         = "IN_TRANSIT"
	SampleReceived          = "RECEIVED"
	SampleTested            = "TESTED"
	SampleDiscarded         = "DISCARDED"
)

func ValidSampleStatus(s string) bool {
	switch s {
	case SampleCollectionPending, SampleCollected, SampleInTransit, SampleReceived, SampleTested, SampleDiscarded:
		return true
	}
	return false
}

// InterpretationNA is the interpretation of an order test without results.
const InterpretationNA = "NA"

const dateLayout = "2006-01-02"

// Order is a patient's booking of one or more catalog tests.
type Order struct {
	ID          uuid.UUID        `json:"id"`
	PatientID   uuid.UUID        `json:"patientId"`
	CreatedBy   *uuid.UUID       `json:"createdBy,omitempty"`
	BookingDate time.Time        `json:"bookingDate"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	Tests       []*OrderTest     `json:"tests"`
	Samples     []*Sample        `json:"samples"`
	Payment     *billing.Payment `json:"payment"`
}

// OrderTest links an order to a catalog test. TestName and Price are read
// from the catalog.
type OrderTest struct {
	OrderID        uuid.UUID       `json:"orderId"`
	TestID         uuid.UUID       `json:"testId"`
	Position       int             `json:"position"`
	Interpretation string          `json:"interpretation"`
	TestName       string          `json:"testName,omitempty"`
	Price          decimal.Decimal `json:"price"`
}

// Sample is the physical specimen tracked for one test of an order.
type Sample struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"orderId"`
	TestID      uuid.UUID  `json:"testId"`
	CollectedBy *uuid.UUID `json:"collectedBy"`
	CollectedAt *time.Time `json:"collectedAt"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes"`
}

// Result is the recorded value of one parameter within one order.
type Result struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"orderId"`
	ParameterID uuid.UUID `json:"parameterId"`
	Value       string    `json:"value"`
	EnteredBy   uuid.UUID `json:"enteredBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type resultKey struct {
	orderID     uuid.UUID
	parameterID uuid.UUID
}

// -- Requests --

type CreateOrderRequest struct {
	PatientID   uuid.UUID   `json:"patientId"`
	BookingDate string      `json:"bookingDate"`
	Status      string      `json:"status"`
	TestIDs     []uuid.UUID `json:"testIds"`
	Notes       *string     `json:"notes"`
}

// UpdateOrderRequest leaves nil fields untouched. A non-nil TestIDs, even
// empty, replaces the order's test selection.
type UpdateOrderRequest struct {
	BookingDate *string      `json:"bookingDate"`
	Status      *string      `json:"status"`
	TestIDs     *[]uuid.UUID `json:"testIds"`
}

type OrderFilter struct {
	PatientID *uuid.UUID
	Status    string
}

type CreateSampleRequest struct {
	OrderID     uuid.UUID  `json:"orderId"`
	TestID      uuid.UUID  `json:"testId"`
	CollectedBy *uuid.UUID `json:"collectedBy"`
	Notes       *string    `json:"notes"`
	// Status is accepted for compatibility and ignored.
	Status string `json:"status,omitempty"`
}

type UpdateSampleRequest struct {
	CollectedBy *uuid.UUID `json:"collectedBy"`
	Status      *string    `json:"status"`
	Notes       *string    `json:"notes"`
}

type SampleFilter struct {
	OrderID *uuid.UUID
	Status  string
}

type ResultEntryInput struct {
	ParameterID uuid.UUID `json:"parameterId"`
	Value       string    `json:"value"`
}

// SaveResultsRequest carries the values for one test of an order. EnteredBy
// defaults to the acting user.
type SaveResultsRequest struct {
	EnteredBy      *uuid.UUID         `json:"enteredBy"`
	Interpretation string             `json:"interpretation"`
	Results        []ResultEntryInput `json:"results"`
}

type ResultEntry struct {
	ParameterID uuid.UUID `json:"parameterId"`
	Value       string    `json:"value"`
}

type SaveResultsResponse struct {
	OrderID      uuid.UUID     `json:"orderId"`
	TestID       uuid.UUID     `json:"testId"`
	EnteredBy    uuid.UUID     `json:"enteredBy"`
	CreatedAt    time.Time     `json:"createdAt"`
	SavedResults []ResultEntry `json:"savedResults"`
}

// OrderResults is an order's results grouped by test, as used for the
// report document.
type OrderResults struct {
	OrderID uuid.UUID         `json:"orderId"`
	Patient PatientInfo       `json:"patient"`
	Tests   []TestResultGroup `json:"tests"`
}

type PatientInfo struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Age    *int      `json:"age"`
	Gender string    `json:"gender"`
}

type TestResultGroup struct {
	TestID          uuid.UUID         `json:"testId"`
	SampleID        *uuid.UUID        `json:"sampleId"`
	TestName        string            `json:"testName"`
	TestDescription string            `json:"testDescription"`
	Interpretation  string            `json:"interpretation"`
	Parameters      []ParameterResult `json:"parameters"`
}

type ParameterResult struct {
	ParameterID    uuid.UUID `json:"parameterId"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	RefRangeMale   string    `json:"refRangeMale"`
	RefRangeFemale string    `json:"refRangeFemale"`
	RefRangeChild  string    `json:"refRangeChild"`
	Value          string    `json:"value"`
	Status         string    `json:"status"`
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
