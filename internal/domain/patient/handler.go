package patient

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

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
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/export", h.ExportPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/patients/:id", h.DeletePatient)
	admin.POST("/patients/import", h.ImportPatients)
}

func (h *Handler) ListPatients(c echo.Context) error {
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	items, err := h.svc.ListPatients(c.Request().Context(), clinicID, c.QueryParam("q"))
	if err != nil {
		return apperr.HTTP(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	p, err := h.svc.CreatePatient(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	d, err := h.svc.GetPatient(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	p, err := h.svc.UpdatePatient(c.Request().Context(), clinicID, id, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	if err := h.svc.DeletePatient(c.Request().Context(), clinicID, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportPatients accepts either a JSON body {"rows": [...]} or a text/csv
// upload with a header line.
func (h *Handler) ImportPatients(c echo.Context) error {
	var rows []ImportRow
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), "text/csv") {
		parsed, err := ParseImportCSV(c.Request().Body)
		if err != nil {
			return apperr.HTTP(err)
		}
		rows = parsed
	} else {
		var body struct {
			Rows []ImportRow `json:"rows"`
		}
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		rows = body.Rows
	}

	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	res, err := h.svc.ImportPatients(c.Request().Context(), clinicID, rows)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func parseDateParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s: use YYYY-MM-DD or RFC 3339", name))
	}
	return t, nil
}

func (h *Handler) ExportPatients(c echo.Context) error {
	from, err := parseDateParam(c, "from")
	if err != nil {
		return err
	}
	to, err := parseDateParam(c, "to")
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return echo.NewHTTPError(http.StatusBadRequest, "format must be csv or xlsx")
	}

	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	patients, err := h.svc.ExportPatients(c.Request().Context(), clinicID, from, to)
	if err != nil {
		return apperr.HTTP(err)
	}

	var buf bytes.Buffer
	contentType := "text/csv"
	if format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = WriteXLSX(&buf, patients)
	} else {
		err = WriteCSV(&buf, patients)
	}
	if err != nil {
		return apperr.HTTP(fmt.Errorf("render export: %w", err))
	}

	filename := fmt.Sprintf("patients-%s.%s", time.Now().Format("2006-01-02"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}
