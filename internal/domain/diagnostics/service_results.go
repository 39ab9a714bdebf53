package diagnostics

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
)

// resultScope is what saving or updating results for one test resolves
// before any write.
type resultScope struct {
	enteredBy uuid.UUID
	existing  map[resultKey]*Result
}

func (s *Service) resolveResultScope(ctx context.Context, orderID, testID uuid.UUID, req *SaveResultsRequest) (*resultScope, error) {
	if len(req.Results) == 0 {
		return nil, apperr.Validation("results must not be empty")
	}
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}

	enteredBy := uuid.Nil
	if req.EnteredBy != nil {
		enteredBy = *req.EnteredBy
	} else if actor, ok := auth.ActorFromContext(ctx); ok {
		enteredBy = actor.UserID
	}
	if enteredBy == uuid.Nil {
		return nil, apperr.Validation("enteredBy is required")
	}
	if _, err := s.users.GetUser(ctx, enteredBy); err != nil {
		return nil, err
	}
	if _, err := s.orderTests.Get(ctx, orderID, testID); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(req.Results))
	for _, e := range req.Results {
		ids = append(ids, e.ParameterID)
	}
	params, err := s.catalog.GetParameters(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range req.Results {
		p, ok := params[e.ParameterID]
		if !ok {
			return nil, apperr.NotFound("parameter", e.ParameterID)
		}
		if p.TestID != testID {
			return nil, apperr.Validation("parameter %s does not belong to test %s", e.ParameterID, testID)
		}
	}

	current, err := s.results.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	existing := make(map[resultKey]*Result, len(current))
	for _, r := range current {
		existing[resultKey{r.OrderID, r.ParameterID}] = r
	}
	return &resultScope{enteredBy: enteredBy, existing: existing}, nil
}

// SaveResults upserts the values for one test, keyed by (order, parameter),
// sets the test's interpretation and marks the whole order COMPLETED.
func (s *Service) SaveResults(ctx context.Context, orderID, testID uuid.UUID, req *SaveResultsRequest) (*SaveResultsResponse, error) {
	var (
		resp             *SaveResultsResponse
		created, updated int
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		scope, err := s.resolveResultScope(ctx, orderID, testID, req)
		if err != nil {
			return err
		}
		if err := s.orders.SetStatus(ctx, orderID, OrderCompleted); err != nil {
			return err
		}

		now := s.now()
		resp = &SaveResultsResponse{OrderID: orderID, TestID: testID, EnteredBy: scope.enteredBy, CreatedAt: now}
		for _, e := range req.Results {
			key := resultKey{orderID, e.ParameterID}
			if r, ok := scope.existing[key]; ok {
				r.Value = e.Value
				r.EnteredBy = scope.enteredBy
				if err := s.results.Update(ctx, r); err != nil {
					return err
				}
				updated++
			} else {
				r := &Result{
					ID:          uuid.New(),
					OrderID:     orderID,
					ParameterID: e.ParameterID,
					Value:       e.Value,
					EnteredBy:   scope.enteredBy,
					CreatedAt:   now,
				}
				if err := s.results.Create(ctx, r); err != nil {
					return err
				}
				scope.existing[key] = r
				created++
			}
			resp.SavedResults = append(resp.SavedResults, ResultEntry{ParameterID: e.ParameterID, Value: e.Value})
		}
		return s.orderTests.SetInterpretation(ctx, orderID, testID, req.Interpretation)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ResultEntries("create", created)
	s.metrics.ResultEntries("update", updated)
	return resp, nil
}

// UpdateResults overwrites existing values for one test. Every entry must
// already have a saved value. The order status is not changed.
func (s *Service) UpdateResults(ctx context.Context, orderID, testID uuid.UUID, req *SaveResultsRequest) (*SaveResultsResponse, error) {
	var resp *SaveResultsResponse
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		scope, err := s.resolveResultScope(ctx, orderID, testID, req)
		if err != nil {
			return err
		}
		resp = &SaveResultsResponse{OrderID: orderID, TestID: testID, EnteredBy: scope.enteredBy, CreatedAt: s.now()}
		for _, e := range req.Results {
			r, ok := scope.existing[resultKey{orderID, e.ParameterID}]
			if !ok {
				return apperr.NotFound("result for parameter", e.ParameterID)
			}
			r.Value = e.Value
			r.EnteredBy = scope.enteredBy
			if err := s.results.Update(ctx, r); err != nil {
				return err
			}
			resp.SavedResults = append(resp.SavedResults, ResultEntry{ParameterID: e.ParameterID, Value: e.Value})
		}
		return s.orderTests.SetInterpretation(ctx, orderID, testID, req.Interpretation)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ResultEntries("update", len(resp.SavedResults))
	return resp, nil
}

// DeleteResults clears one test's results, resets its interpretation and
// puts the order back to PENDING.
func (s *Service) DeleteResults(ctx context.Context, orderID, testID uuid.UUID) error {
	deleted := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.orders.GetByID(ctx, orderID); err != nil {
			return err
		}
		if _, err := s.orderTests.Get(ctx, orderID, testID); err != nil {
			return err
		}
		if err := s.orders.SetStatus(ctx, orderID, OrderPending); err != nil {
			return err
		}
		var err error
		if deleted, err = s.results.DeleteByOrderTest(ctx, orderID, testID); err != nil {
			return err
		}
		return s.orderTests.SetInterpretation(ctx, orderID, testID, InterpretationNA)
	})
	if err != nil {
		return err
	}
	s.metrics.ResultEntries("delete", deleted)
	return nil
}

// GetResults groups an order's result entries by test in booking order,
// and parameters by their catalog position.
func (s *Service) GetResults(ctx context.Context, orderID uuid.UUID) (*OrderResults, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.GetPatient(ctx, order.PatientID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	orderTests, err := s.orderTests.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	samples, err := s.samples.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paramIDs := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		paramIDs = append(paramIDs, r.ParameterID)
	}
	params, err := s.catalog.GetParameters(ctx, paramIDs)
	if err != nil {
		return nil, err
	}

	byTest := make(map[uuid.UUID][]*Result)
	var testIDs []uuid.UUID
	for _, r := range results {
		p, ok := params[r.ParameterID]
		if !ok {
			continue
		}
		if _, seen := byTest[p.TestID]; !seen {
			testIDs = append(testIDs, p.TestID)
		}
		byTest[p.TestID] = append(byTest[p.TestID], r)
	}
	tests, err := s.catalog.GetMany(ctx, testIDs)
	if err != nil {
		return nil, err
	}

	rank := make(map[uuid.UUID]int, len(orderTests))
	interpretation := make(map[uuid.UUID]string, len(orderTests))
	for i, ot := range orderTests {
		rank[ot.TestID] = i
		interpretation[ot.TestID] = ot.Interpretation
	}
	sampleFor := make(map[uuid.UUID]uuid.UUID)
	for _, sm := range samples {
		if _, ok := sampleFor[sm.TestID]; !ok {
			sampleFor[sm.TestID] = sm.ID
		}
	}
	sort.SliceStable(testIDs, func(i, j int) bool {
		ri, iok := rank[testIDs[i]]
		rj, jok := rank[testIDs[j]]
		if iok != jok {
			return iok
		}
		return ri < rj
	})

	out := &OrderResults{
		OrderID: orderID,
		Patient: PatientInfo{
			ID:     patient.ID,
			Name:   patient.Name,
			Age:    patient.AgeAt(s.now()),
			Gender: patient.Gender,
		},
		Tests: []TestResultGroup{},
	}
	for _, testID := range testIDs {
		group := TestResultGroup{TestID: testID, Interpretation: interpretation[testID]}
		if t, ok := tests[testID]; ok {
			group.TestName = t.Name
			group.TestDescription = t.Description
		}
		if id, ok := sampleFor[testID]; ok {
			sid := id
			group.SampleID = &sid
		}
		entries := byTest[testID]
		sort.SliceStable(entries, func(i, j int) bool {
			return params[entries[i].ParameterID].Position < params[entries[j].ParameterID].Position
		})
		for _, r := range entries {
			group.Parameters = append(group.Parameters, s.parameterResult(r, params[r.ParameterID], patient))
		}
		out.Tests = append(out.Tests, group)
	}
	return out, nil
}

func (s *Service) parameterResult(r *Result, p *catalog.Parameter, patient *identity.Patient) ParameterResult {
	return ParameterResult{
		ParameterID:    p.ID,
		Name:           p.Name,
		Unit:           p.Unit,
		RefRangeMale:   p.RefRangeMale,
		RefRangeFemale: p.RefRangeFemale,
		RefRangeChild:  p.RefRangeChild,
		Value:          r.Value,
		Status:         s.evaluator.Evaluate(r.Value, p, patient),
	}
}
