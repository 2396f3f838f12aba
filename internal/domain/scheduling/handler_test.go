package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
)

func (f *fixture) request(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	ctx := auth.WithPrincipal(req.Context(), auth.Principal{UserID: f.doctorID, ClinicID: f.clinicID, Role: auth.RoleDoctor})
	return req.WithContext(ctx)
}

func TestHandler_CreateAppointment(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	body := `{"patient_id":"` + f.patient.String() + `","scheduled_at":"2024-03-06T14:05:00Z","type":"CHECKUP"}`
	rec := httptest.NewRecorder()

	if err := h.CreateAppointment(e.NewContext(f.request(http.MethodPost, "/appointments", body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.DoctorID != f.doctorID || got.Status != StatusScheduled {
		t.Errorf("unexpected appointment %+v", got)
	}
}

func TestHandler_ListAppointments_Range(t *testing.T) {
	f := newFixture(t)
	f.book(t, time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC))
	h, e := NewHandler(f.svc), echo.New()
	rec := httptest.NewRecorder()

	req := f.request(http.MethodGet, "/appointments?from=2024-03-06T00:00:00Z&to=2024-03-07T00:00:00Z", "")
	if err := h.ListAppointments(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []Appointment
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 {
		t.Errorf("expected 1 appointment, got %d", len(got))
	}
}

func TestHandler_ListAppointments_BadTime(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	err := h.ListAppointments(e.NewContext(f.request(http.MethodGet, "/appointments?from=monday", ""), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_DayView_WorkingHours(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	rec := httptest.NewRecorder()

	req := f.request(http.MethodGet, "/appointments/day?date=2024-03-06&working_hours=true", "")
	if err := h.GetDayView(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got DayView
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got.Slots) != 24 {
		t.Errorf("expected 24 slots, got %d", len(got.Slots))
	}

	err := h.GetDayView(e.NewContext(f.request(http.MethodGet, "/appointments/day?working_hours=maybe", ""), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_SetStatus(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	h, e := NewHandler(f.svc), echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(f.request(http.MethodPatch, "/", `{"status":"CONFIRMED"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.SetStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"CONFIRMED"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(f.request(http.MethodPatch, "/", `{"status":"COMPLETED"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	err := h.SetStatus(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestHandler_GetAppointment_BadID(t *testing.T) {
	f := newFixture(t)
	h, e := NewHandler(f.svc), echo.New()
	c := e.NewContext(f.request(http.MethodGet, "/", ""), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")
	err := h.GetAppointment(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_DeleteAppointment(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	h, e := NewHandler(f.svc), echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(f.request(http.MethodDelete, "/", ""), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.DeleteAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok := f.repo.items[a.ID]; ok {
		t.Error("expected appointment to be removed")
	}
}
