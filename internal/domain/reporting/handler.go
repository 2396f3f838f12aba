package reporting

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
)

type Handler struct {
	svc   *Service
	cache *middleware.ResponseCache
}

// NewHandler serves the dashboard. With a cache, responses are kept under the
// dashboard tag until a write invalidates them.
func NewHandler(svc *Service, cache *middleware.ResponseCache) *Handler {
	return &Handler{svc: svc, cache: cache}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	var g *echo.Group
	if h.cache != nil {
		g = api.Group("/dashboard", middleware.Cached(h.cache, middleware.TagDashboard))
	} else {
		g = api.Group("/dashboard")
	}
	g.GET("/stats", h.Stats)
	g.GET("/revenue", h.Revenue)
	g.GET("/patient-growth", h.PatientGrowth)
	g.GET("/top-services", h.TopServices)
	g.GET("/appointment-status", h.StatusDistribution)
	g.GET("/monthly-comparison", h.MonthlyComparison)
	g.GET("/upcoming", h.Upcoming)
	g.GET("/activity", h.Activity)
}

func respond(c echo.Context, v interface{}, err error) error {
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := h.svc.DashboardStats(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, st, err)
}

func (h *Handler) Revenue(c echo.Context) error {
	ctx := c.Request().Context()
	points, err := h.svc.RevenueSeries(ctx, auth.ClinicIDFromContext(ctx), strings.ToLower(c.QueryParam("period")))
	return respond(c, points, err)
}

func (h *Handler) PatientGrowth(c echo.Context) error {
	ctx := c.Request().Context()
	points, err := h.svc.PatientGrowth(ctx, auth.ClinicIDFromContext(ctx), strings.ToLower(c.QueryParam("period")))
	return respond(c, points, err)
}

func (h *Handler) TopServices(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.TopServices(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, items, err)
}

func (h *Handler) StatusDistribution(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.StatusDistribution(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, items, err)
}

func (h *Handler) MonthlyComparison(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.MonthlyComparison(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, items, err)
}

func (h *Handler) Upcoming(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.UpcomingAppointments(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, items, err)
}

func (h *Handler) Activity(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.RecentActivity(ctx, auth.ClinicIDFromContext(ctx))
	return respond(c, items, err)
}
