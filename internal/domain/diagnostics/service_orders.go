package diagnostics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/notification"
)

// CreateOrder books the requested tests for a patient. Each distinct test
// gets an order test and a pending sample, and a pending payment for the
// sum of their prices is created when at least one test is booked.
func (s *Service) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patientId is required")
	}
	status := req.Status
	if status == "" {
		status = OrderPending
	}
	if !ValidOrderStatus(status) {
		return nil, apperr.Validation("invalid status: %q", status)
	}
	bookingDate := s.now().UTC().Truncate(24 * time.Hour)
	if req.BookingDate != "" {
		d, err := parseDate(req.BookingDate)
		if err != nil {
			return nil, apperr.Validation("bookingDate must be YYYY-MM-DD")
		}
		bookingDate = d
	}

	var (
		order   *Order
		patient *identity.Patient
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if patient, err = s.patients.GetPatient(ctx, req.PatientID); err != nil {
			return err
		}
		ids := dedupe(req.TestIDs)
		tests, err := s.resolveTests(ctx, ids)
		if err != nil {
			return err
		}
		createdBy, err := s.actingUser(ctx)
		if err != nil {
			return err
		}

		o := &Order{
			ID:          uuid.New(),
			PatientID:   patient.ID,
			CreatedBy:   createdBy,
			BookingDate: bookingDate,
			Status:      status,
			Tests:       []*OrderTest{},
			Samples:     []*Sample{},
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}

		now := s.now()
		total := decimal.Zero
		for i, id := range ids {
			t := tests[id]
			ot := &OrderTest{
				OrderID:        o.ID,
				TestID:         id,
				Position:       i,
				Interpretation: InterpretationNA,
				TestName:       t.Name,
				Price:          t.Price,
			}
			if err := s.orderTests.Add(ctx, ot); err != nil {
				return err
			}
			collectedAt := now
			sample := &Sample{
				ID:          uuid.New(),
				OrderID:     o.ID,
				TestID:      id,
				CollectedAt: &collectedAt,
				Status:      SampleCollectionPending,
				Notes:       req.Notes,
			}
			if err := s.samples.Create(ctx, sample); err != nil {
				return err
			}
			o.Tests = append(o.Tests, ot)
			o.Samples = append(o.Samples, sample)
			total = total.Add(t.Price)
		}

		if len(ids) > 0 {
			p := &billing.Payment{
				ID:      uuid.New(),
				OrderID: o.ID,
				Amount:  total,
				Status:  billing.StatusPending,
			}
			if err := s.payments.CreateForOrder(ctx, p); err != nil {
				return err
			}
			o.Payment = p
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Order("create")
	s.notifyBooking(ctx, patient, order)
	return order, nil
}

func (s *Service) notifyBooking(ctx context.Context, patient *identity.Patient, o *Order) {
	if s.notifier == nil || len(o.Tests) == 0 {
		return
	}
	names := make([]string, 0, len(o.Tests))
	for _, ot := range o.Tests {
		names = append(names, ot.TestName)
	}
	s.notifier.Notify(ctx, patient.Email, notification.TemplateBookingConfirmation, map[string]string{
		"patient_name": patient.Name,
		"booking_date": o.BookingDate.Format(dateLayout),
		"tests":        strings.Join(names, ", "),
		"link":         strings.TrimRight(s.portalURL, "/") + "/bookings/" + o.ID.String(),
	})
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.loadAssociations(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter, limit, offset int) ([]*Order, int, error) {
	if f.Status != "" && !ValidOrderStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status: %q", f.Status)
	}
	items, total, err := s.orders.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, o := range items {
		if err := s.loadAssociations(ctx, o); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (s *Service) ListOrderTests(ctx context.Context, orderID uuid.UUID) ([]*OrderTest, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orderTests.ListByOrder(ctx, orderID)
}

func (s *Service) loadAssociations(ctx context.Context, o *Order) error {
	tests, err := s.orderTests.ListByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	samples, err := s.samples.ListByOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	o.Tests = append([]*OrderTest{}, tests...)
	o.Samples = append([]*Sample{}, samples...)

	p, err := s.payments.GetByOrder(ctx, o.ID)
	switch {
	case err == nil:
		o.Payment = p
	case apperr.IsNotFound(err):
		o.Payment = nil
	default:
		return err
	}
	return nil
}

// UpdateOrder overwrites the provided fields. When TestIDs is set the test
// selection is replaced: surviving tests keep their interpretation, new ones
// start at "NA" and dropped ones lose their results. Samples and the payment
// are left as they are.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, req *UpdateOrderRequest) (*Order, error) {
	if req.Status != nil && !ValidOrderStatus(*req.Status) {
		return nil, apperr.Validation("invalid status: %q", *req.Status)
	}
	var bookingDate *time.Time
	if req.BookingDate != nil {
		d, err := parseDate(*req.BookingDate)
		if err != nil {
			return nil, apperr.Validation("bookingDate must be YYYY-MM-DD")
		}
		bookingDate = &d
	}

	var (
		out    *Order
		purged int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if bookingDate != nil {
			o.BookingDate = *bookingDate
		}
		if req.Status != nil {
			o.Status = *req.Status
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		if req.TestIDs != nil {
			if purged, err = s.reconcileTests(ctx, o.ID, dedupe(*req.TestIDs)); err != nil {
				return err
			}
		}
		if err := s.loadAssociations(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Order("update")
	s.metrics.ResultEntries("purge", purged)
	return out, nil
}

// reconcileTests returns the number of result entries purged for dropped
// tests.
func (s *Service) reconcileTests(ctx context.Context, orderID uuid.UUID, ids []uuid.UUID) (int, error) {
	if _, err := s.resolveTests(ctx, ids); err != nil {
		return 0, err
	}
	current, err := s.orderTests.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	existing := make(map[uuid.UUID]*OrderTest, len(current))
	next := 0
	for _, ot := range current {
		existing[ot.TestID] = ot
		if ot.Position >= next {
			next = ot.Position + 1
		}
	}

	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
		if _, ok := existing[id]; ok {
			continue
		}
		if err := s.orderTests.Add(ctx, &OrderTest{
			OrderID:        orderID,
			TestID:         id,
			Position:       next,
			Interpretation: InterpretationNA,
		}); err != nil {
			return 0, err
		}
		next++
	}

	purged := 0
	for _, ot := range current {
		if _, ok := wanted[ot.TestID]; ok {
			continue
		}
		n, err := s.results.DeleteByOrderTest(ctx, orderID, ot.TestID)
		if err != nil {
			return 0, err
		}
		purged += n
		if err := s.orderTests.Remove(ctx, orderID, ot.TestID); err != nil {
			return 0, err
		}
	}
	return purged, nil
}

// DeleteOrder removes the order together with its tests, samples, payment
// and result entries.
func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	purged := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.orders.GetByID(ctx, id); err != nil {
			return err
		}
		var err error
		if purged, err = s.results.DeleteByOrder(ctx, id); err != nil {
			return err
		}
		return s.orders.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.metrics.Order("delete")
	s.metrics.ResultEntries("purge", purged)
	return nil
}
