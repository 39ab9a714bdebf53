package diagnostics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
	"github.com/pathlab/pathlab/internal/platform/db"
	"github.com/pathlab/pathlab/internal/platform/metrics"
)

type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// CatalogLookup resolves catalog tests and parameters. Missing ids are
// absent from the returned maps.
type CatalogLookup interface {
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Test, error)
	GetParameters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Parameter, error)
}

type PaymentStore interface {
	CreateForOrder(ctx context.Context, p *billing.Payment) error
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*billing.Payment, error)
}

// Notifier queues a templated message. Delivery failures never reach the
// caller.
type Notifier interface {
	Notify(ctx context.Context, to, templateID string, data map[string]string)
}

// Service owns the order lifecycle: orders and their tests, samples, the
// payment accrued at booking and result entries.
type Service struct {
	orders     OrderRepository
	orderTests OrderTestRepository
	samples    SampleRepository
	results    ResultRepository
	tx         db.Transactor

	patients PatientLookup
	users    UserLookup
	catalog  CatalogLookup
	payments PaymentStore

	notifier    Notifier
	portalURL   string
	evaluator   RangeEvaluator
	transitions *TransitionPolicy
	metrics     *metrics.Collector
	now         func() time.Time
}

func NewService(
	orders OrderRepository,
	orderTests OrderTestRepository,
	samples SampleRepository,
	results ResultRepository,
	tx db.Transactor,
	patients PatientLookup,
	users UserLookup,
	catalog CatalogLookup,
	payments PaymentStore,
) *Service {
	return &Service{
		orders:     orders,
		orderTests: orderTests,
		samples:    samples,
		results:    results,
		tx:         tx,
		patients:   patients,
		users:      users,
		catalog:    catalog,
		payments:   payments,
		evaluator:  NormalEvaluator{},
		now:        time.Now,
	}
}

// SetNotifier enables booking confirmations. portalURL prefixes the link
// sent to the patient.
func (s *Service) SetNotifier(n Notifier, portalURL string) {
	s.notifier = n
	s.portalURL = portalURL
}

func (s *Service) SetRangeEvaluator(e RangeEvaluator) {
	if e != nil {
		s.evaluator = e
	}
}

// SetStrictSampleTransitions makes sample status updates follow the custody
// transition table. Status changes are unrestricted by default.
func (s *Service) SetStrictSampleTransitions(strict bool) {
	if strict {
		s.transitions = DefaultTransitionPolicy()
	} else {
		s.transitions = nil
	}
}

func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// actingUser returns the authenticated staff member if the account exists.
func (s *Service) actingUser(ctx context.Context) (*uuid.UUID, error) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.IsZero() {
		return nil, nil
	}
	if _, err := s.users.GetUser(ctx, actor.UserID); err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	id := actor.UserID
	return &id, nil
}

// dedupe returns ids without repeats, keeping first occurrences in order.
func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// resolveTests looks up every id and fails on the first one missing.
func (s *Service) resolveTests(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Test, error) {
	tests, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := tests[id]; !ok {
			return nil, apperr.NotFound("test", id)
		}
	}
	return tests, nil
}
