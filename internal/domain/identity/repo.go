package identity

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListWithSummary returns patients newest first with their booking count
	// and latest booking date.
	ListWithSummary(ctx context.Context, limit, offset int) ([]*PatientSummary, int, error)
	Overview(ctx context.Context, id uuid.UUID) (*PatientOverview, error)
	HasOrders(ctx context.Context, id uuid.UUID) (bool, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}
