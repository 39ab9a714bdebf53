package dashboard

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stats is the headline block of the admin dashboard.
type Stats struct {
	TotalPatients  int64           `json:"totalPatients"`
	TotalBookings  int64           `json:"totalBookings"`
	TestsCompleted int64           `json:"testsCompleted"`
	PendingReports int64           `json:"pendingReports"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	MonthlyGrowth  decimal.Decimal `json:"monthlyGrowth"`
}

type MonthlyBooking struct {
	Month    string          `json:"month"`
	Bookings int64           `json:"bookings"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// TestDistribution is one sample-type bucket with its integer percentage.
type TestDistribution struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Activity types.
const (
	ActivityBooking = "booking"
	ActivityPayment = "payment"
	ActivityReport  = "report"
)

type Activity struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Time      string    `json:"time"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent, PaymentEvent and SampleEvent are the raw rows behind the
// activity feed.
type OrderEvent struct {
	ID          uuid.UUID
	PatientName string
	Status      string
	CreatedAt   time.Time
	TestNames   []string
}

type PaymentEvent struct {
	ID          uuid.UUID
	PatientName string
	PaidAt      time.Time
}

type SampleEvent struct {
	ID          uuid.UUID
	PatientName string
	TestName    string
	CollectedAt time.Time
}
