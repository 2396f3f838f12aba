package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func withUser(t *testing.T, svc *Service, req *http.Request) (*http.Request, *User) {
	t.Helper()
	u, err := svc.EnsureUser(context.Background(), auth.Identity{ExternalID: "h-" + t.Name(), FirstName: "Nina"})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	ctx := auth.WithPrincipal(req.Context(), auth.Principal{UserID: u.ID, ClinicID: u.ClinicID, Role: u.Role})
	return req.WithContext(ctx), u
}

func TestHandler_Me(t *testing.T) {
	h, svc, e := newTestHandler()
	req, u := withUser(t, svc, httptest.NewRequest(http.MethodGet, "/me", nil))
	rec := httptest.NewRecorder()

	if err := h.Me(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got User
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.ID != u.ID {
		t.Errorf("expected user %s, got %s", u.ID, got.ID)
	}
	if strings.Contains(rec.Body.String(), "external_id") {
		t.Error("external id must not be serialised")
	}
}

func TestHandler_GetClinic(t *testing.T) {
	h, svc, e := newTestHandler()
	req, _ := withUser(t, svc, httptest.NewRequest(http.MethodGet, "/clinic", nil))
	rec := httptest.NewRecorder()

	if err := h.GetClinic(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"invoice_prefix":"INV"`) {
		t.Errorf("expected settings in body, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateClinic_BadDuration(t *testing.T) {
	h, svc, e := newTestHandler()
	body := `{"default_appointment_duration": 5}`
	req, _ := withUser(t, svc, httptest.NewRequest(http.MethodPut, "/clinic", strings.NewReader(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.UpdateClinic(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_ListDoctors_EmptyArray(t *testing.T) {
	h, svc, e := newTestHandler()
	req, _ := withUser(t, svc, httptest.NewRequest(http.MethodGet, "/doctors", nil))
	rec := httptest.NewRecorder()

	if err := h.ListDoctors(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestScopeMiddleware(t *testing.T) {
	_, svc, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ExternalID: "scope-1", FirstName: "Omar"}))
	c := e.NewContext(req, httptest.NewRecorder())

	var got auth.Principal
	err := ScopeMiddleware(svc)(func(c echo.Context) error {
		got, _ = auth.PrincipalFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != auth.RoleAdmin || got.ClinicID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("unexpected principal %+v", got)
	}
}

func TestScopeMiddleware_NoIdentity(t *testing.T) {
	_, svc, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := ScopeMiddleware(svc)(func(c echo.Context) error { return nil })(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestScopeMiddleware_InactiveUser(t *testing.T) {
	_, svc, e := newTestHandler()
	u, _ := svc.EnsureUser(context.Background(), auth.Identity{ExternalID: "scope-2"})
	u.IsActive = false

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{ExternalID: "scope-2"}))
	err := ScopeMiddleware(svc)(func(c echo.Context) error { return nil })(e.NewContext(req, httptest.NewRecorder()))
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}
