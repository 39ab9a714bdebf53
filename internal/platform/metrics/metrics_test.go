package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_DomainCounters(t *testing.T) {
	c := NewCollector("pathlab")

	c.Order("create")
	c.Order("create")
	c.ResultEntries("insert", 3)
	c.ResultEntries("insert", 0)
	c.Payment("PAID")

	if got := testutil.ToFloat64(c.OrdersTotal.WithLabelValues("create")); got != 2 {
		t.Errorf("expected 2 order creates, got %v", got)
	}
	if got := testutil.ToFloat64(c.ResultEntriesTotal.WithLabelValues("insert")); got != 3 {
		t.Errorf("expected 3 inserted entries, got %v", got)
	}
	if got := testutil.ToFloat64(c.PaymentsTotal.WithLabelValues("PAID")); got != 1 {
		t.Errorf("expected 1 paid payment, got %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.Order("create")
	c.Sample("COLLECTED")
	c.ResultEntries("insert", 1)
	c.Payment("PENDING")
	c.Notification("sent")
	c.Cache("hit")
	c.ObservePool(nil)
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewCollector("pathlab")
	b := NewCollector("pathlab")
	a.Order("delete")
	if got := testutil.ToFloat64(b.OrdersTotal.WithLabelValues("delete")); got != 0 {
		t.Errorf("expected isolated registries, got %v", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("pathlab")
	c.Sample("TESTED")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pathlab_lab_sample_transitions_total{status="TESTED"} 1`) {
		t.Errorf("expected sample transition series in output")
	}
}
