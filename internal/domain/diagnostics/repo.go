package diagnostics

import (
	"context"

	"github.com/google/uuid"
)

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns orders newest first.
	List(ctx context.Context, f OrderFilter, limit, offset int) ([]*Order, int, error)
}

type OrderTestRepository interface {
	Add(ctx context.Context, ot *OrderTest) error
	Get(ctx context.Context, orderID, testID uuid.UUID) (*OrderTest, error)
	// ListByOrder returns the order's tests by position with catalog name
	// and price filled in.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderTest, error)
	Remove(ctx context.Context, orderID, testID uuid.UUID) error
	SetInterpretation(ctx context.Context, orderID, testID uuid.UUID, interpretation string) error
}

type SampleRepository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Sample, error)
	List(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r *Result) error
	// Update overwrites value and entered_by. created_at is left as is.
	Update(ctx context.Context, r *Result) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Result, error)
	// DeleteByOrderTest removes the order's results for parameters of testID.
	DeleteByOrderTest(ctx context.Context, orderID, testID uuid.UUID) (int, error)
	DeleteByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
}
