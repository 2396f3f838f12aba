package clinic

import (
	"net/http"

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
	api.GET("/me", h.Me)
	api.GET("/clinic", h.GetClinic)
	api.GET("/doctors", h.ListDoctors)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.PUT("/clinic", h.UpdateClinic)
	admin.GET("/users", h.ListUsers)
}

func (h *Handler) Me(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	u, err := h.svc.GetUser(c.Request().Context(), p.ClinicID, p.UserID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetClinic(c echo.Context) error {
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	profile, err := h.svc.GetProfile(c.Request().Context(), clinicID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) UpdateClinic(c echo.Context) error {
	var in ClinicUpdate
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	profile, err := h.svc.UpdateClinic(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	doctors, err := h.svc.ListDoctors(c.Request().Context(), clinicID)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, nonNil(doctors))
}

func (h *Handler) ListUsers(c echo.Context) error {
	clinicID := auth.ClinicIDFromContext(c.Request().Context())
	users, err := h.svc.ListUsers(c.Request().Context(), clinicID, c.QueryParam("role"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, nonNil(users))
}

func nonNil(users []*User) []*User {
	if users == nil {
		return []*User{}
	}
	return users
}
