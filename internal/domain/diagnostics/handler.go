package diagnostics

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pathlab/pathlab/internal/platform/apperr"
	"github.com/pathlab/pathlab/internal/platform/auth"
	"github.com/pathlab/pathlab/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Reads, booking and result entry: lab staff and doctors.
	staff := api.Group("", auth.RequireRole(auth.RoleLabTech, auth.RoleDoctor))
	staff.GET("/orders", h.ListOrders)
	staff.GET("/orders/:id", h.GetOrder)
	staff.GET("/orders/:id/tests", h.ListOrderTests)
	staff.GET("/orders/:id/results", h.GetResults)
	staff.GET("/samples", h.ListSamples)
	staff.GET("/samples/:id", h.GetSample)
	staff.POST("/orders", h.CreateOrder)
	staff.PUT("/orders/:id", h.UpdateOrder)
	staff.POST("/orders/:id/tests/:testId/results", h.SaveResults)
	staff.PUT("/orders/:id/tests/:testId/results", h.UpdateResults)
	staff.DELETE("/orders/:id/tests/:testId/results", h.DeleteResults)

	// Specimen custody and order removal: lab staff only.
	lab := api.Group("", auth.RequireRole(auth.RoleLabTech))
	lab.DELETE("/orders/:id", h.DeleteOrder)
	lab.POST("/samples", h.CreateSample)
	lab.PUT("/samples/:id", h.UpdateSample)
	lab.DELETE("/samples/:id", h.DeleteSample)
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalUUIDQuery(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// -- Orders --

func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.CreateOrder(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	o, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c echo.Context) error {
	patientID, err := optionalUUIDQuery(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := OrderFilter{PatientID: patientID, Status: c.QueryParam("status")}
	items, total, err := h.svc.ListOrders(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateOrder(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := h.svc.UpdateOrder(c.Request().Context(), id, &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrder(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOrder(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOrderTests(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListOrderTests(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*OrderTest{}
	}
	return c.JSON(http.StatusOK, items)
}

// -- Results --

func (h *Handler) bindResults(c echo.Context) (uuid.UUID, uuid.UUID, *SaveResultsRequest, error) {
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}
	testID, err := parseUUIDParam(c, "testId")
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}
	var req SaveResultsRequest
	if err := c.Bind(&req); err != nil {
		return uuid.Nil, uuid.Nil, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return orderID, testID, &req, nil
}

func (h *Handler) SaveResults(c echo.Context) error {
	orderID, testID, req, err := h.bindResults(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.SaveResults(c.Request().Context(), orderID, testID, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdateResults(c echo.Context) error {
	orderID, testID, req, err := h.bindResults(c)
	if err != nil {
		return err
	}
	resp, err := h.svc.UpdateResults(c.Request().Context(), orderID, testID, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteResults(c echo.Context) error {
	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	testID, err := parseUUIDParam(c, "testId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteResults(c.Request().Context(), orderID, testID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetResults(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	res, err := h.svc.GetResults(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// -- Samples --

func (h *Handler) CreateSample(c echo.Context) error {
	var req CreateSampleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.CreateSample(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetSample(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.svc.GetSample(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListSamples(c echo.Context) error {
	orderID, err := optionalUUIDQuery(c, "orderId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := SampleFilter{OrderID: orderID, Status: c.QueryParam("status")}
	items, total, err := h.svc.ListSamples(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateSample(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateSampleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.svc.UpdateSample(c.Request().Context(), id, &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSample(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteSample(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
