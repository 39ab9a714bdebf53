package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pathlab/pathlab/internal/platform/auth"
)

func serve(t *testing.T, role, target string) *httptest.ResponseRecorder {
	t.Helper()
	svc, repo := newTestService()
	repo.sampleTypes = map[string]int64{"blood": 3, "tissue": 1}

	e := echo.New()
	api := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.WithActor(context.Background(), auth.Actor{UserID: uuid.New(), Role: role})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(api)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_TestDistribution(t *testing.T) {
	rec := serve(t, auth.RoleAdmin, "/api/v1/dashboard/test-distribution")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var items []TestDistribution
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 2 || items[0].Value != 75 || items[1].Name != "Tissue Tests" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_MonthlyBookings_Query(t *testing.T) {
	rec := serve(t, auth.RoleAdmin, "/api/v1/dashboard/monthly-bookings?months=2")
	var items []MonthlyBooking
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != 2 {
		t.Errorf("expected 2 months, got %d", len(items))
	}

	rec = serve(t, auth.RoleAdmin, "/api/v1/dashboard/monthly-bookings?months=abc")
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != DefaultMonths {
		t.Errorf("expected default months for malformed query, got %d", len(items))
	}

	rec = serve(t, auth.RoleAdmin, "/api/v1/dashboard/monthly-bookings")
	json.Unmarshal(rec.Body.Bytes(), &items)
	if len(items) != DefaultMonths {
		t.Errorf("expected default months when absent, got %d", len(items))
	}

	rec = serve(t, auth.RoleAdmin, "/api/v1/dashboard/monthly-bookings?months=0")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list for months=0, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_AdminOnly(t *testing.T) {
	rec := serve(t, auth.RoleLabTech, "/api/v1/dashboard/stats")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for lab tech, got %d", rec.Code)
	}
}
