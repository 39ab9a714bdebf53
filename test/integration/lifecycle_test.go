package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pathlab/pathlab/internal/domain/billing"
	"github.com/pathlab/pathlab/internal/domain/catalog"
	"github.com/pathlab/pathlab/internal/domain/dashboard"
	"github.com/pathlab/pathlab/internal/domain/diagnostics"
	"github.com/pathlab/pathlab/internal/domain/identity"
	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
)

type fixture struct {
	svc     *services
	ctx     context.Context
	tech    *identity.User
	patient *identity.Patient
	testA   *catalog.Test
	testB   *catalog.Test
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	svc := newServices()
	suffix := randomSuffix(t)

	tech, err := svc.identity.CreateUser(context.Background(), &identity.CreateUserRequest{
		Name: "Tech " + suffix, Email: "tech-" + suffix + "@pathlab.test", Role: auth.RoleLabTech,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ctx := auth.WithActor(context.Background(), auth.Actor{UserID: tech.ID, Role: tech.Role})

	patient, err := svc.identity.CreatePatient(ctx, &identity.CreatePatientRequest{
		Name: "Patient " + suffix, Gender: identity.GenderMale, Email: "p-" + suffix + "@pathlab.test",
	})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}

	create := func(name, price string, params ...string) *catalog.Test {
		req := &catalog.CreateTestRequest{Name: name, SampleType: catalog.SampleBlood, Price: decimal.RequireFromString(price)}
		for _, p := range params {
			req.Parameters = append(req.Parameters, catalog.ParameterInput{Name: p, Unit: "mg/dL"})
		}
		test, err := svc.catalog.CreateTest(ctx, req)
		if err != nil {
			t.Fatalf("create test %s: %v", name, err)
		}
		return test
	}
	return &fixture{
		svc:     svc,
		ctx:     ctx,
		tech:    tech,
		patient: patient,
		testA:   create("Lipid "+suffix, "10.00", "HDL", "LDL"),
		testB:   create("Iron "+suffix, "15.00", "Ferritin"),
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	diag := f.svc.diagnostics

	o, err := diag.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID, f.testB.ID},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := diag.GetOrder(f.ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Tests) != 2 || len(got.Samples) != 2 {
		t.Fatalf("expected 2 tests and 2 samples, got %d/%d", len(got.Tests), len(got.Samples))
	}
	if got.Payment == nil || !got.Payment.Amount.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected payment of 25, got %+v", got.Payment)
	}
	if got.CreatedBy == nil || *got.CreatedBy != f.tech.ID {
		t.Error("expected createdBy to be the acting technician")
	}
	for _, ot := range got.Tests {
		if ot.Interpretation != diagnostics.InterpretationNA {
			t.Errorf("expected NA, got %q", ot.Interpretation)
		}
	}

	_, err = diag.SaveResults(f.ctx, o.ID, f.testA.ID, &diagnostics.SaveResultsRequest{
		Interpretation: "borderline",
		Results: []diagnostics.ResultEntryInput{
			{ParameterID: f.testA.Parameters[0].ID, Value: "45"},
			{ParameterID: f.testA.Parameters[1].ID, Value: "130"},
		},
	})
	if err != nil {
		t.Fatalf("save results: %v", err)
	}
	got, _ = diag.GetOrder(f.ctx, o.ID)
	if got.Status != diagnostics.OrderCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}

	res, err := diag.GetResults(f.ctx, o.ID)
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if len(res.Tests) != 1 || len(res.Tests[0].Parameters) != 2 || res.Tests[0].Interpretation != "borderline" {
		t.Errorf("unexpected grouped results: %+v", res.Tests)
	}
	if res.Tests[0].Parameters[0].Name != "HDL" || res.Tests[0].Parameters[0].Value != "45" {
		t.Errorf("expected HDL first, got %+v", res.Tests[0].Parameters[0])
	}

	if err := diag.DeleteResults(f.ctx, o.ID, f.testA.ID); err != nil {
		t.Fatalf("delete results: %v", err)
	}
	got, _ = diag.GetOrder(f.ctx, o.ID)
	if got.Status != diagnostics.OrderPending {
		t.Errorf("expected PENDING, got %s", got.Status)
	}
	if got.Tests[0].Interpretation != diagnostics.InterpretationNA {
		t.Errorf("expected interpretation reset, got %q", got.Tests[0].Interpretation)
	}
}

func TestUpdateOrder_DropsTestAndResults(t *testing.T) {
	f := newFixture(t)
	diag := f.svc.diagnostics

	o, err := diag.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID, f.testB.ID},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := diag.SaveResults(f.ctx, o.ID, f.testB.ID, &diagnostics.SaveResultsRequest{
		Interpretation: "low",
		Results:        []diagnostics.ResultEntryInput{{ParameterID: f.testB.Parameters[0].ID, Value: "8"}},
	}); err != nil {
		t.Fatalf("save results: %v", err)
	}

	ids := []uuid.UUID{f.testB.ID}
	updated, err := diag.UpdateOrder(f.ctx, o.ID, &diagnostics.UpdateOrderRequest{TestIDs: &ids})
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if len(updated.Tests) != 1 || updated.Tests[0].Interpretation != "low" {
		t.Errorf("expected surviving test to keep interpretation, got %+v", updated.Tests)
	}
	if len(updated.Samples) != 2 {
		t.Errorf("expected samples retained, got %d", len(updated.Samples))
	}

	// testB is still booked on the order.
	if err := f.svc.catalog.DeleteTest(f.ctx, f.testB.ID); !apperr.IsConflict(err) {
		t.Errorf("expected conflict deleting a referenced test, got %v", err)
	}
	if err := diag.DeleteOrder(f.ctx, o.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := f.svc.billing.GetByOrder(f.ctx, o.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected payment removed with its order, got %v", err)
	}
}

func TestPaymentAndInvoice(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.diagnostics.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paid := billing.StatusPaid
	p, err := f.svc.billing.UpdatePayment(f.ctx, o.Payment.ID, &billing.UpdatePaymentRequest{Status: &paid})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if p.Status != billing.StatusPaid || p.PaidAt == nil {
		t.Errorf("expected PAID with paid timestamp, got %+v", p)
	}

	inv, err := f.svc.billing.InvoiceData(f.ctx, p.ID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if inv.Patient.ID != f.patient.ID || len(inv.Order.Lines) != 1 || !inv.Order.Lines[0].Price.Equal(decimal.NewFromInt(10)) {
		t.Errorf("unexpected invoice: %+v", inv)
	}

	if _, err := f.svc.billing.CreatePayment(f.ctx, &billing.CreatePaymentRequest{OrderID: o.ID, Amount: decimal.NewFromInt(10)}); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for a second payment, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.diagnostics.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID, f.testB.ID},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	stats, err := f.svc.dashboard.Stats(f.ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalBookings < 1 || stats.TotalPatients < 1 {
		t.Errorf("expected at least one booking and patient, got %+v", stats)
	}

	var samples int64
	if err := globalPool.QueryRow(f.ctx, `SELECT COUNT(*) FROM samples`).Scan(&samples); err != nil {
		t.Fatal(err)
	}
	if stats.TestsCompleted+stats.PendingReports != samples {
		t.Errorf("expected completed + pending = %d, got %d", samples, stats.TestsCompleted+stats.PendingReports)
	}

	feed, err := f.svc.dashboard.RecentActivity(f.ctx, 5)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	if len(feed) == 0 || len(feed) > 5 {
		t.Errorf("expected between 1 and 5 entries, got %d", len(feed))
	}

	dist, err := f.svc.dashboard.TestDistribution(f.ctx)
	if err != nil || len(dist) == 0 || dist[0].Name != "Blood Tests" {
		t.Errorf("unexpected distribution: %+v %v", dist, err)
	}
}

func TestPaymentRepo_OnePerOrder(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.diagnostics.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Bypasses the service check so the unique index decides.
	err = billing.NewPaymentRepoPG(globalPool).Create(f.ctx, &billing.Payment{
		ID: uuid.New(), OrderID: o.ID, Amount: decimal.NewFromInt(5), Status: billing.StatusPending,
	})
	if !apperr.IsConflict(err) {
		t.Errorf("expected conflict from the unique index, got %v", err)
	}
}

func TestRepoDelete_ReferencedIsConflict(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.diagnostics.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
		PatientID: f.patient.ID,
		TestIDs:   []uuid.UUID{f.testA.ID},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	// The repositories are called directly, as a concurrent booking would
	// slip past the services' reference checks.
	if err := catalog.NewTestRepoPG(globalPool).Delete(f.ctx, f.testA.ID); !apperr.IsConflict(err) {
		t.Errorf("expected conflict deleting a booked test, got %v", err)
	}
	if err := identity.NewPatientRepoPG(globalPool).Delete(f.ctx, f.patient.ID); !apperr.IsConflict(err) {
		t.Errorf("expected conflict deleting a patient with orders, got %v", err)
	}
}

func TestRecentOrders_TiesBrokenByID(t *testing.T) {
	f := newFixture(t)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		o, err := f.svc.diagnostics.CreateOrder(f.ctx, &diagnostics.CreateOrderRequest{
			PatientID: f.patient.ID,
			TestIDs:   []uuid.UUID{f.testA.ID},
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		ids = append(ids, o.ID)
	}
	// A shared timestamp later than any other row puts these three on top.
	stamp := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := globalPool.Exec(f.ctx, `UPDATE orders SET created_at = $1 WHERE id = ANY($2)`, stamp, ids); err != nil {
		t.Fatal(err)
	}

	repo := dashboard.NewRepoPG(globalPool)
	first, err := repo.RecentOrders(f.ctx, 3)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].ID.String() >= first[i].ID.String() {
			t.Errorf("expected ascending ids among equal timestamps, got %s then %s", first[i-1].ID, first[i].ID)
		}
	}
	for i := 0; i < 5; i++ {
		again, _ := repo.RecentOrders(f.ctx, 3)
		for j := range again {
			if again[j].ID != first[j].ID {
				t.Fatalf("order changed between calls at %d", j)
			}
		}
	}
	if _, err := globalPool.Exec(f.ctx, `DELETE FROM orders WHERE id = ANY($1)`, ids); err != nil {
		t.Fatal(err)
	}
}
