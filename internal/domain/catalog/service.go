package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/db"
)

const (
	maxNameLen  = 100
	maxUnitLen  = 50
	maxRangeLen = 100
)

type Service struct {
	tests TestRepository
	tx    db.Transactor
}

func NewService(tests TestRepository, tx db.Transactor) *Service {
	return &Service{tests: tests, tx: tx}
}

func (s *Service) CreateTest(ctx context.Context, req *CreateTestRequest) (*Test, error) {
	if err := validateTestFields(req.Name, req.Price, req.Parameters); err != nil {
		return nil, err
	}
	if !ValidSampleType(req.SampleType) {
		return nil, apperr.Validation("invalid sampleType: %q", req.SampleType)
	}
	t := &Test{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		SampleType:  req.SampleType,
		Price:       req.Price,
	}
	t.Parameters = buildParameters(t.ID, req.Parameters)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.tests.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) ListTests(ctx context.Context, limit, offset int) ([]*Test, int, error) {
	return s.tests.List(ctx, limit, offset)
}

func (s *Service) ListParameters(ctx context.Context, testID uuid.UUID) ([]*Parameter, error) {
	if _, err := s.tests.GetByID(ctx, testID); err != nil {
		return nil, err
	}
	return s.tests.ListParameters(ctx, testID)
}

// UpdateTest overwrites the basic fields and, when req carries parameters,
// replaces the whole parameter set.
func (s *Service) UpdateTest(ctx context.Context, id uuid.UUID, req *UpdateTestRequest) (*Test, error) {
	if err := validateTestFields(req.Name, req.Price, req.Parameters); err != nil {
		return nil, err
	}
	if req.SampleType != nil && !ValidSampleType(*req.SampleType) {
		return nil, apperr.Validation("invalid sampleType: %q", *req.SampleType)
	}

	var out *Test
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.tests.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t.Name = req.Name
		t.Description = req.Description
		t.Price = req.Price
		if req.SampleType != nil {
			t.SampleType = *req.SampleType
		}
		if err := s.tests.Update(ctx, t); err != nil {
			return err
		}

		if len(req.Parameters) > 0 {
			inUse, err := s.tests.ParametersHaveResults(ctx, id)
			if err != nil {
				return err
			}
			if inUse {
				return apperr.Conflict("test %s has recorded results; parameters cannot be replaced", id)
			}
			params := buildParameters(id, req.Parameters)
			if err := s.tests.ReplaceParameters(ctx, id, params); err != nil {
				return err
			}
			t.Parameters = params
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteTest(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.tests.GetByID(ctx, id); err != nil {
			return err
		}
		referenced, err := s.tests.ReferencedByOrders(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return apperr.Conflict("test %s is referenced by orders", id)
		}
		return s.tests.Delete(ctx, id)
	})
}

// GetMany and GetParameters let the order lifecycle resolve catalog items
// without depending on the repository.

func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Test, error) {
	return s.tests.GetMany(ctx, ids)
}

func (s *Service) GetParameters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Parameter, error) {
	return s.tests.GetParameters(ctx, ids)
}

func validateTestFields(name string, price decimal.Decimal, params []ParameterInput) error {
	if name == "" {
		return apperr.Validation("name is required")
	}
	if len(name) > maxNameLen {
		return apperr.Validation("name must be at most %d characters", maxNameLen)
	}
	if price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	for i, p := range params {
		switch {
		case p.Name == "":
			return apperr.Validation("parameters[%d].name is required", i)
		case len(p.Name) > maxNameLen:
			return apperr.Validation("parameters[%d].name must be at most %d characters", i, maxNameLen)
		case len(p.Unit) > maxUnitLen:
			return apperr.Validation("parameters[%d].unit must be at most %d characters", i, maxUnitLen)
		case len(p.RefRangeMale) > maxRangeLen, len(p.RefRangeFemale) > maxRangeLen, len(p.RefRangeChild) > maxRangeLen:
			return apperr.Validation("parameters[%d] reference ranges must be at most %d characters", i, maxRangeLen)
		}
	}
	return nil
}
