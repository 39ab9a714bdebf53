package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment statuses.
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
)

func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusPaid
}

// Payment is the single billing record of an order.
type Payment struct {
	ID      uuid.UUID       `json:"id"`
	OrderID uuid.UUID       `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	PaidAt  *time.Time      `json:"paidAt"`
}

type CreatePaymentRequest struct {
	OrderID uuid.UUID       `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
	Status  string          `json:"status"`
	PaidAt  *time.Time      `json:"paidAt"`
}

type UpdatePaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Status *string          `json:"status"`
}

// PatientPayment is a payment joined with its order's booking date, as shown
// in a patient's history.
type PatientPayment struct {
	*Payment
	BookingDate time.Time `json:"bookingDate"`
}

// Invoice is the data handed to the document renderer for one payment.
type Invoice struct {
	Payment     *Payment       `json:"payment"`
	Order       InvoiceOrder   `json:"order"`
	Patient     InvoicePatient `json:"patient"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

type InvoiceOrder struct {
	ID          uuid.UUID     `json:"id"`
	BookingDate time.Time     `json:"bookingDate"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	Lines       []InvoiceLine `json:"lines"`
}

type InvoiceLine struct {
	TestID uuid.UUID       `json:"testId"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type InvoicePatient struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Gender        string    `json:"gender"`
	Email         string    `json:"email"`
	ContactNumber *string   `json:"contactNumber,omitempty"`
	Address       *string   `json:"address,omitempty"`
}
