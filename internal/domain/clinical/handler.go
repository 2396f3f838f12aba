package clinical

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/procedures", h.ListProcedures)
	api.GET("/appointments/:id/records", h.ListRecords)
	api.POST("/appointments/:id/records", h.AddRecord)
	api.DELETE("/records/:id", h.DeleteRecord)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/procedures", h.CreateProcedure)
	admin.PUT("/procedures/:id", h.UpdateProcedure)
	admin.DELETE("/procedures/:id", h.DeleteProcedure)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListProcedures(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("include_inactive"))
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	items, err := h.svc.ListProcedures(c.Request().Context(), clinicID, c.QueryParam("category"), all)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateProcedure(c echo.Context) error {
	var in ProcedureInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	p, err := h.svc.CreateProcedure(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdateProcedure(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in ProcedureInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	p, err := h.svc.UpdateProcedure(c.Request().Context(), clinicID, id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeleteProcedure answers 204 when the row is gone and 200 with the
// deactivated flag when it had to be kept.
func (h *Handler) DeleteProcedure(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	deactivated, err := h.svc.DeleteProcedure(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	if deactivated {
		return c.JSON(http.StatusOK, map[string]bool{"deactivated": true})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRecords(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	items, err := h.svc.ListRecords(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in NewRecord
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	rec, err := h.svc.AddRecord(c.Request().Context(), clinicID, id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) DeleteRecord(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	if err := h.svc.DeleteRecord(c.Request().Context(), clinicID, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
