package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/metrics"
)

type Service struct {
	payments PaymentRepository
	tx       db.Transactor
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewService(payments PaymentRepository, tx db.Transactor) *Service {
	return &Service{payments: payments, tx: tx, now: time.Now}
}

func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// CreatePayment records a payment for an existing order. PaidAt defaults to
// the current time. An order holds at most one payment, so a second one is a
// Conflict; top-ups go through UpdatePayment.
func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*Payment, error) {
	if req.OrderID == uuid.Nil {
		return nil, apperr.Validation("orderId is required")
	}
	if req.Amount.IsNegative() {
		return nil, apperr.Validation("amount must not be negative")
	}
	if !ValidStatus(req.Status) {
		return nil, apperr.Validation("status must be PENDING or PAID")
	}

	p := &Payment{
		ID:      uuid.New(),
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Status:  req.Status,
		PaidAt:  req.PaidAt,
	}
	if p.PaidAt == nil {
		now := s.now()
		p.PaidAt = &now
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.payments.OrderExists(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("order", req.OrderID)
		}
		if _, err := s.payments.GetByOrder(ctx, req.OrderID); err == nil {
			return apperr.Conflict("order %s already has a payment", req.OrderID)
		} else if !apperr.IsNotFound(err) {
			return err
		}
		return s.payments.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Payment(p.Status)
	return p, nil
}

// CreateForOrder inserts the payment that accrues when an order is booked.
// It runs inside the caller's transaction.
func (s *Service) CreateForOrder(ctx context.Context, p *Payment) error {
	if err := s.payments.Create(ctx, p); err != nil {
		return err
	}
	s.metrics.Payment(p.Status)
	return nil
}

func (s *Service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	return s.payments.GetByOrder(ctx, orderID)
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, apperr.Validation("status must be PENDING or PAID")
	}
	return s.payments.List(ctx, status, limit, offset)
}

func (s *Service) ListPaymentsByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientPayment, error) {
	return s.payments.ListByPatient(ctx, patientID)
}

// UpdatePayment applies the provided fields and always stamps PaidAt with
// the current time, whatever the resulting status.
func (s *Service) UpdatePayment(ctx context.Context, id uuid.UUID, req *UpdatePaymentRequest) (*Payment, error) {
	if req.Amount != nil && req.Amount.IsNegative() {
		return nil, apperr.Validation("amount must not be negative")
	}
	if req.Status != nil && !ValidStatus(*req.Status) {
		return nil, apperr.Validation("status must be PENDING or PAID")
	}

	var out *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Amount != nil {
			p.Amount = *req.Amount
		}
		if req.Status != nil {
			p.Status = *req.Status
		}
		now := s.now()
		p.PaidAt = &now
		if err := s.payments.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Payment(out.Status)
	return out, nil
}

// DeletePayment removes the payment. The order stays in place.
func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	return s.payments.Delete(ctx, id)
}

func (s *Service) InvoiceData(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv *Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inv, err = s.payments.LoadInvoice(ctx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	inv.GeneratedAt = s.now()
	return inv, nil
}
