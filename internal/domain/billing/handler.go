package billing

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
	"github.com/dentaldesk/dentaldesk/pkg/pagination"
)

type Handler struct {
	svc   *Service
	cache *middleware.ResponseCache
}

// NewHandler serves billing routes. A non-nil cache stores invoice list
// responses under the billing tag.
func NewHandler(svc *Service, cache *middleware.ResponseCache) *Handler {
	return &Handler{svc: svc, cache: cache}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	if h.cache != nil {
		api.GET("/invoices", h.ListInvoices, middleware.Cached(h.cache, middleware.TagBilling))
	} else {
		api.GET("/invoices", h.ListInvoices)
	}
	api.POST("/invoices", h.CreateInvoice)
	api.GET("/invoices/:id", h.GetInvoice)
	api.GET("/invoices/:id/payments", h.ListPayments)
	api.POST("/invoices/:id/payments", h.RecordPayment)
	api.POST("/appointments/:id/invoice", h.GenerateFromAppointment)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/invoices/:id/cancel", h.CancelInvoice)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := InvoiceFilter{
		Status: strings.ToUpper(c.QueryParam("status")),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	items, total, err := h.svc.ListInvoices(c.Request().Context(), clinicID, f)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var in NewInvoice
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	inv, err := h.svc.CreateInvoice(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	inv, err := h.svc.GetInvoice(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	payments, err := h.svc.ListPayments(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) RecordPayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in NewPayment
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	receipt, err := h.svc.RecordPayment(c.Request().Context(), clinicID, id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) CancelInvoice(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	inv, err := h.svc.CancelInvoice(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) GenerateFromAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	inv, err := h.svc.GenerateFromAppointment(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, inv)
}
