package billing

import (
	"context"

	"github.com/google/uuid"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns payments filtered by status when status is non-empty.
	List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientPayment, error)
	OrderExists(ctx context.Context, orderID uuid.UUID) (bool, error)
	// LoadInvoice fills the order and patient sections of an invoice for p.
	LoadInvoice(ctx context.Context, p *Payment) (*Invoice, error)
}
