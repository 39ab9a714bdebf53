package diagnostics

import (
	"context"

	"github.com/google/uuid"

	"github.com/pathlab/pathlab/internal/platform/apperr"
)

// CreateSample registers an extra specimen for an order. The status always
// starts at COLLECTION_PENDING.
func (s *Service) CreateSample(ctx context.Context, req *CreateSampleRequest) (*Sample, error) {
	if req.OrderID == uuid.Nil || req.TestID == uuid.Nil {
		return nil, apperr.Validation("orderId and testId are required")
	}
	var out *Sample
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.orders.GetByID(ctx, req.OrderID); err != nil {
			return err
		}
		if _, err := s.resolveTests(ctx, []uuid.UUID{req.TestID}); err != nil {
			return err
		}
		if req.CollectedBy != nil {
			if _, err := s.users.GetUser(ctx, *req.CollectedBy); err != nil {
				return err
			}
		}
		now := s.now()
		sample := &Sample{
			ID:          uuid.New(),
			OrderID:     req.OrderID,
			TestID:      req.TestID,
			CollectedBy: req.CollectedBy,
			CollectedAt: &now,
			Status:      SampleCollectionPending,
			Notes:       req.Notes,
		}
		if err := s.samples.Create(ctx, sample); err != nil {
			return err
		}
		out = sample
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Sample(out.Status)
	return out, nil
}

func (s *Service) GetSample(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.samples.GetByID(ctx, id)
}

func (s *Service) ListSamples(ctx context.Context, f SampleFilter, limit, offset int) ([]*Sample, int, error) {
	if f.Status != "" && !ValidSampleStatus(f.Status) {
		return nil, 0, apperr.Validation("invalid status: %q", f.Status)
	}
	return s.samples.List(ctx, f, limit, offset)
}

// UpdateSample applies the provided fields. Moving to COLLECTED refreshes
// the collection time.
func (s *Service) UpdateSample(ctx context.Context, id uuid.UUID, req *UpdateSampleRequest) (*Sample, error) {
	if req.Status != nil && !ValidSampleStatus(*req.Status) {
		return nil, apperr.Validation("invalid status: %q", *req.Status)
	}
	var out *Sample
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sample, err := s.samples.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.CollectedBy != nil {
			if _, err := s.users.GetUser(ctx, *req.CollectedBy); err != nil {
				return err
			}
			sample.CollectedBy = req.CollectedBy
		}
		if req.Status != nil {
			if err := s.transitions.Check(sample.Status, *req.Status); err != nil {
				return err
			}
			sample.Status = *req.Status
			if sample.Status == SampleCollected {
				now := s.now()
				sample.CollectedAt = &now
			}
		}
		if req.Notes != nil {
			sample.Notes = req.Notes
		}
		if err := s.samples.Update(ctx, sample); err != nil {
			return err
		}
		out = sample
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		s.metrics.Sample(out.Status)
	}
	return out, nil
}

func (s *Service) DeleteSample(ctx context.Context, id uuid.UUID) error {
	return s.samples.Delete(ctx, id)
}
