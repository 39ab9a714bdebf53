package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository runs the read-only aggregates. Time windows are half-open,
// [from, to).
type Repository interface {
	CountPatients(ctx context.Context) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	// CountSamplesByStatus returns sample counts keyed by status.
	CountSamplesByStatus(ctx context.Context) (map[string]int64, error)
	// CountSamplesBySampleType returns sample counts keyed by the sample type
	// of each sample's test.
	CountSamplesBySampleType(ctx context.Context) (map[string]int64, error)
	SumPaid(ctx context.Context) (decimal.Decimal, error)
	SumPaidBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)

	RecentOrders(ctx context.Context, limit int) ([]OrderEvent, error)
	// RecentPayments returns payments with a paid timestamp, newest first.
	RecentPayments(ctx context.Context, limit int) ([]PaymentEvent, error)
	// RecentSamples returns samples with a collection timestamp, newest first.
	RecentSamples(ctx context.Context, limit int) ([]SampleEvent, error)
}
