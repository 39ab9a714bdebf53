package catalog

import (
	"context"

	"github.com/google/uuid"
)

type TestRepository interface {
	// Create inserts the test and its parameters.
	Create(ctx context.Context, t *Test) error
	// GetByID returns the test with its parameters loaded.
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	// GetMany returns the tests that exist among ids, without parameters.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Test, error)
	List(ctx context.Context, limit, offset int) ([]*Test, int, error)
	Update(ctx context.Context, t *Test) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListParameters(ctx context.Context, testID uuid.UUID) ([]*Parameter, error)
	GetParameters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Parameter, error)
	ReplaceParameters(ctx context.Context, testID uuid.UUID, params []*Parameter) error
	// ParametersHaveResults reports whether any result entry references a
	// parameter of testID.
	ParametersHaveResults(ctx context.Context, testID uuid.UUID) (bool, error)
	// ReferencedByOrders reports whether any order or sample references testID.
	ReferencedByOrders(ctx context.Context, testID uuid.UUID) (bool, error)
}
