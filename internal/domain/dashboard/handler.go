package dashboard

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/dashboard", auth.RequireRole(auth.RoleAdmin))
	g.GET("/stats", h.GetStats)
	g.GET("/monthly-bookings", h.GetMonthlyBookings)
	g.GET("/test-distribution", h.GetTestDistribution)
	g.GET("/recent-activity", h.GetRecentActivity)
}

// intQuery returns the named query parameter, or def when absent or malformed.
func intQuery(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return v
	}
	return def
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetMonthlyBookings(c echo.Context) error {
	items, err := h.svc.MonthlyBookings(c.Request().Context(), intQuery(c, "months", DefaultMonths))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetTestDistribution(c echo.Context) error {
	items, err := h.svc.TestDistribution(c.Request().Context())
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetRecentActivity(c echo.Context) error {
	items, err := h.svc.RecentActivity(c.Request().Context(), intQuery(c, "limit", DefaultLimit))
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}
