package scheduling

import (
	"net/http"
	"strconv"
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
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/day", h.GetDayView)
	api.GET("/appointments/week", h.GetWeekView)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PUT("/appointments/:id", h.UpdateAppointment)
	api.PATCH("/appointments/:id/status", h.SetStatus)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseTimeParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": use RFC 3339")
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var in NewAppointment
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	a, err := h.svc.CreateAppointment(c.Request().Context(), p.ClinicID, p.UserID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListAppointments returns appointments in [from, to), or today's when both
// bounds are omitted.
func (h *Handler) ListAppointments(c echo.Context) error {
	from, err := parseTimeParam(c, "from")
	if err != nil {
		return err
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())

	var items []*Appointment
	if from.IsZero() && to.IsZero() {
		items, err = h.svc.AppointmentsForDate(c.Request().Context(), clinicID, c.QueryParam("date"))
	} else {
		items, err = h.svc.AppointmentsForRange(c.Request().Context(), clinicID, from, to)
	}
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDayView(c echo.Context) error {
	working := false
	if v := c.QueryParam("working_hours"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "working_hours must be true or false")
		}
		working = b
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	view, err := h.svc.DayView(c.Request().Context(), clinicID, c.QueryParam("date"), working)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetWeekView(c echo.Context) error {
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	view, err := h.svc.WeekView(c.Request().Context(), clinicID, c.QueryParam("date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	a, err := h.svc.GetAppointment(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var up AppointmentUpdate
	if err := c.Bind(&up); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	a, err := h.svc.UpdateAppointment(c.Request().Context(), clinicID, id, up)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	a, err := h.svc.SetStatus(c.Request().Context(), clinicID, id, body.Status)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	if err := h.svc.DeleteAppointment(c.Request().Context(), clinicID, id); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
