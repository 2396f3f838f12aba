package reminder

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/dentaldesk/dentaldesk/pkg/pagination"
)

// CronHandler exposes the dispatcher to an external scheduler. It lives
// outside the user-authenticated API and is guarded by a shared secret.
type CronHandler struct {
	dispatcher *Dispatcher
	secret     string
	dev        bool
	now        func() time.Time
}

// NewCronHandler with an empty secret leaves the endpoint open in development
// and closed everywhere else.
func NewCronHandler(d *Dispatcher, secret string, dev bool) *CronHandler {
	return &CronHandler{dispatcher: d, secret: secret, dev: dev, now: time.Now}
}

func (h *CronHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/reminders", h.Run)
	g.POST("/reminders", h.Run)
}

func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return h.dev
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func (h *CronHandler) Run(c echo.Context) error {
	if !h.authorized(c.Request()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	res, err := h.dispatcher.Dispatch(c.Request().Context(), h.now())
	if err != nil {
		h.dispatcher.logger.Error().Err(err).Msg("reminder run failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "reminder run failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"processed": res.Processed,
		"sent":      res.Sent,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"results":   res.Items,
	})
}

// Handler serves the clinic-scoped notification log.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.ListNotifications)
}

func (h *Handler) ListNotifications(c echo.Context) error {
	pg := pagination.FromContext(c)
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	items, total, err := h.dispatcher.ListNotifications(c.Request().Context(), clinicID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
