package patient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func asClinic(req *http.Request, clinicID uuid.UUID, role string) *http.Request {
	ctx := auth.WithPrincipal(req.Context(), auth.Principal{UserID: uuid.New(), ClinicID: clinicID, Role: role})
	return req.WithContext(ctx)
}

func TestHandler_CreatePatient(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"first_name":"Asha","last_name":"Rao","phone":"98123 45678","allergies":["Latex"]}`
	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asClinic(req, uuid.New(), auth.RoleStaff)
	rec := httptest.NewRecorder()

	if err := h.CreatePatient(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Patient
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Phone != "+919812345678" {
		t.Errorf("expected normalised phone, got %s", got.Phone)
	}
}

func TestHandler_CreatePatient_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(`{"first_name":"A"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asClinic(req, uuid.New(), auth.RoleStaff)

	err := h.CreatePatient(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetPatient_BadID(t *testing.T) {
	h, _, e := newTestHandler()
	req := asClinic(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RoleStaff)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetPatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := asClinic(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), auth.RoleStaff)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetPatient(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListPatients_EmptyArray(t *testing.T) {
	h, _, e := newTestHandler()
	req := asClinic(httptest.NewRequest(http.MethodGet, "/patients?q=zz", nil), uuid.New(), auth.RoleStaff)
	rec := httptest.NewRecorder()

	if err := h.ListPatients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandler_ImportPatients_CSV(t *testing.T) {
	h, _, e := newTestHandler()
	body := "First Name,Last Name,Phone\nAsha,Rao,9812345678\nRavi,Kumar,9812345678\n"
	req := httptest.NewRequest(http.MethodPost, "/patients/import", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	req = asClinic(req, uuid.New(), auth.RoleAdmin)
	rec := httptest.NewRecorder()

	if err := h.ImportPatients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res ImportResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Created != 1 || res.Skipped != 1 {
		t.Errorf("expected 1 created / 1 skipped, got %+v", res)
	}
}

func TestHandler_ImportPatients_JSON(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"rows":[{"first_name":"Asha","last_name":"Rao","phone":"9812345678"}]}`
	req := httptest.NewRequest(http.MethodPost, "/patients/import", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = asClinic(req, uuid.New(), auth.RoleAdmin)
	rec := httptest.NewRecorder()

	if err := h.ImportPatients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"created":1`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_ExportPatients(t *testing.T) {
	h, svc, e := newTestHandler()
	clinicID := uuid.New()
	svc.CreatePatient(context.Background(), clinicID, validInput())

	req := asClinic(httptest.NewRequest(http.MethodGet, "/patients/export?from=2000-01-01", nil), clinicID, auth.RoleStaff)
	rec := httptest.NewRecorder()
	if err := h.ExportPatients(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/csv" {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "attachment") {
		t.Error("expected attachment disposition")
	}
	if lines := strings.Count(rec.Body.String(), "\n"); lines != 2 {
		t.Errorf("expected header plus one row, got %d lines", lines)
	}
}

func TestHandler_ExportPatients_BadParams(t *testing.T) {
	h, _, e := newTestHandler()
	for _, q := range []string{"?format=pdf", "?from=yesterday"} {
		req := asClinic(httptest.NewRequest(http.MethodGet, "/patients/export"+q, nil), uuid.New(), auth.RoleStaff)
		err := h.ExportPatients(e.NewContext(req, httptest.NewRecorder()))
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", q, err)
		}
	}
}

func TestRegisterRoutes_DeleteRequiresAdmin(t *testing.T) {
	h, _, e := newTestHandler()
	clinicID := uuid.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(asClinic(c.Request(), clinicID, auth.RoleStaff))
			return next(c)
		}
	})
	h.RegisterRoutes(e.Group("/api"))

	req := httptest.NewRequest(http.MethodDelete, "/api/patients/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for staff delete, got %d", rec.Code)
	}
}
