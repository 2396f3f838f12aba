package scheduling

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/domain/clinic"
	"github.com/dentaldesk/dentaldesk/internal/domain/patient"
	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

// -- Mocks --

type mockRepo struct {
	items    map[uuid.UUID]*Appointment
	patients map[uuid.UUID]uuid.UUID // patient -> clinic
	doctors  map[uuid.UUID]uuid.UUID // user -> clinic

	// beforeUpdate runs inside UpdateStatus ahead of the status check.
	beforeUpdate func(a *Appointment)
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		items:    make(map[uuid.UUID]*Appointment),
		patients: make(map[uuid.UUID]uuid.UUID),
		doctors:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok || a.ClinicID != clinicID {
		return nil, apperr.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := m.items[a.ID]; !ok {
		return apperr.NotFound("appointment")
	}
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, clinicID, id uuid.UUID, from, to string) error {
	a, ok := m.items[id]
	if !ok || a.ClinicID != clinicID {
		return apperr.NotFound("appointment")
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(a)
	}
	if a.Status != from {
		return apperr.Conflict("appointment status changed from %s by another request", from)
	}
	a.Status = to
	return nil
}

func (m *mockRepo) Delete(_ context.Context, clinicID, id uuid.UUID) error {
	a, ok := m.items[id]
	if !ok || a.ClinicID != clinicID {
		return apperr.NotFound("appointment")
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ListBetween(_ context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.items {
		if a.ClinicID == clinicID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *mockRepo) PatientInClinic(_ context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	return m.patients[patientID] == clinicID, nil
}

func (m *mockRepo) DoctorInClinic(_ context.Context, clinicID, doctorID uuid.UUID) (bool, error) {
	return m.doctors[doctorID] == clinicID, nil
}

type inlineTx struct{}

func (inlineTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type mockSettings struct{ settings *clinic.Settings }

func (m *mockSettings) GetSettings(_ context.Context, clinicID uuid.UUID) (*clinic.Settings, error) {
	if m.settings == nil {
		return clinic.DefaultSettings(clinicID), nil
	}
	return m.settings, nil
}

type mockVisits struct {
	touched map[uuid.UUID]time.Time
	err     error
}

func (m *mockVisits) TouchLastVisit(_ context.Context, _, patientID uuid.UUID, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.touched[patientID] = at
	return nil
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	settings *mockSettings
	visits   *mockVisits
	clinicID uuid.UUID
	doctorID uuid.UUID
	patient  uuid.UUID
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMockRepo()
	settings := &mockSettings{}
	visits := &mockVisits{touched: make(map[uuid.UUID]time.Time)}
	svc := NewService(repo, inlineTx{}, settings, time.UTC, zerolog.Nop())
	svc.SetVisitRecorder(visits)

	f := &fixture{
		svc: svc, repo: repo, settings: settings, visits: visits,
		clinicID: uuid.New(), doctorID: uuid.New(), patient: uuid.New(),
		now: time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.now }
	repo.patients[f.patient] = f.clinicID
	repo.doctors[f.doctorID] = f.clinicID
	return f
}

func (f *fixture) book(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	a, err := f.svc.CreateAppointment(context.Background(), f.clinicID, f.doctorID, NewAppointment{
		PatientID: f.patient, ScheduledAt: at, Type: TypeCheckup,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

type recordingCache struct {
	calls int
	tags  []string
}

func (r *recordingCache) Invalidate(_ uuid.UUID, tags ...string) {
	r.calls++
	r.tags = append(r.tags, tags...)
}

// -- Create --

func TestCreateAppointment_Defaults(t *testing.T) {
	f := newFixture(t)
	cache := &recordingCache{}
	f.svc.SetCache(cache)

	a := f.book(t, f.now.Add(time.Hour))
	if a.Status != StatusScheduled {
		t.Errorf("expected SCHEDULED, got %s", a.Status)
	}
	if a.Duration != 30 {
		t.Errorf("expected default duration 30, got %d", a.Duration)
	}
	if a.DoctorID != f.doctorID {
		t.Error("expected acting user to be the doctor")
	}
	if cache.calls != 1 {
		t.Errorf("expected dashboard invalidation, got %d calls", cache.calls)
	}
}

func TestCreateAppointment_ClinicDefaultDuration(t *testing.T) {
	f := newFixture(t)
	st := clinic.DefaultSettings(f.clinicID)
	st.DefaultAppointmentDuration = 45
	f.settings.settings = st

	a := f.book(t, f.now)
	if a.Duration != 45 {
		t.Errorf("expected clinic default 45, got %d", a.Duration)
	}
}

func TestCreateAppointment_AllowsOverlap(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.now)
	f.book(t, f.now)
	if len(f.repo.items) != 2 {
		t.Errorf("expected double booking to be allowed, have %d", len(f.repo.items))
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	otherPatient := uuid.New()
	f.repo.patients[otherPatient] = uuid.New()

	tests := []struct {
		name string
		in   NewAppointment
		want error
	}{
		{"missing patient", NewAppointment{ScheduledAt: f.now, Type: TypeCheckup}, apperr.ErrValidation},
		{"missing time", NewAppointment{PatientID: f.patient, Type: TypeCheckup}, apperr.ErrValidation},
		{"bad type", NewAppointment{PatientID: f.patient, ScheduledAt: f.now, Type: "SURGERY"}, apperr.ErrValidation},
		{"short", NewAppointment{PatientID: f.patient, ScheduledAt: f.now, Type: TypeCheckup, Duration: 10}, apperr.ErrValidation},
		{"long", NewAppointment{PatientID: f.patient, ScheduledAt: f.now, Type: TypeCheckup, Duration: 241}, apperr.ErrValidation},
		{"other clinic patient", NewAppointment{PatientID: otherPatient, ScheduledAt: f.now, Type: TypeCheckup}, apperr.ErrNotFound},
		{"unknown doctor", NewAppointment{PatientID: f.patient, DoctorID: uuid.New(), ScheduledAt: f.now, Type: TypeCheckup}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(context.Background(), f.clinicID, f.doctorID, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.repo.items) != 0 {
		t.Error("no appointment should have been stored")
	}
}

func TestScheduleFirstVisit(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ScheduleFirstVisit(context.Background(), f.clinicID, f.patient, patient.FirstVisit{
		ScheduledAt: f.now, DoctorID: f.doctorID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range f.repo.items {
		if a.Type != TypeConsultation {
			t.Errorf("expected CONSULTATION default, got %s", a.Type)
		}
	}

	err = f.svc.ScheduleFirstVisit(context.Background(), f.clinicID, f.patient, patient.FirstVisit{ScheduledAt: f.now})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected doctor to be required, got %v", err)
	}
}

// -- Update / status --

func TestUpdateAppointment(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	later := f.now.Add(2 * time.Hour)
	dur := 60
	notes := "bring x-rays"

	got, err := f.svc.UpdateAppointment(context.Background(), f.clinicID, a.ID, AppointmentUpdate{
		ScheduledAt: &later, Duration: &dur, Notes: &notes,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.ScheduledAt.Equal(later) || got.Duration != 60 || got.Notes == nil || *got.Notes != notes {
		t.Errorf("unexpected update result %+v", got)
	}

	bad := 5
	if _, err := f.svc.UpdateAppointment(context.Background(), f.clinicID, a.ID, AppointmentUpdate{Duration: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSetStatus_CompletedTouchesLastVisit(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)

	for _, s := range []string{StatusSeated, StatusInProgress, StatusCompleted} {
		if _, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	if f.repo.items[a.ID].Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", f.repo.items[a.ID].Status)
	}
	if !f.visits.touched[f.patient].Equal(f.now) {
		t.Error("expected last visit to be updated")
	}
}

func TestSetStatus_SameIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	f.repo.items[a.ID].Status = StatusCompleted
	f.visits.err = errors.New("should not be called")

	got, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
}

func TestSetStatus_Rejected(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)

	if _, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, StatusCompleted); !errors.Is(err, apperr.ErrBusinessRule) {
		t.Errorf("expected business rule error, got %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, "DONE"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), uuid.New(), a.ID, StatusConfirmed); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for other clinic, got %v", err)
	}
}

func TestSetStatus_ConcurrentChangeConflicts(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)

	// Another request cancels between the read and the write.
	f.repo.beforeUpdate = func(stored *Appointment) { stored.Status = StatusCancelled }

	_, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, StatusSeated)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.repo.items[a.ID].Status != StatusCancelled {
		t.Errorf("expected CANCELLED to survive, got %s", f.repo.items[a.ID].Status)
	}
}

func TestSetStatus_ReopenCancelled(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	if _, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, err := f.svc.SetStatus(context.Background(), f.clinicID, a.ID, StatusScheduled)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Status != StatusScheduled {
		t.Errorf("expected SCHEDULED, got %s", got.Status)
	}
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, f.now)
	cache := &recordingCache{}
	f.svc.SetCache(cache)
	if err := f.svc.DeleteAppointment(context.Background(), f.clinicID, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Linked invoices lose their appointment date, so invoice lists are stale too.
	if len(cache.tags) != 2 || cache.tags[0] != "dashboard" || cache.tags[1] != "billing" {
		t.Errorf("expected dashboard and billing invalidation, got %v", cache.tags)
	}
	if err := f.svc.DeleteAppointment(context.Background(), f.clinicID, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

// -- Queries --

func TestAppointmentsForRange_HalfOpen(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	f.book(t, from)
	f.book(t, to.Add(-time.Minute))
	f.book(t, to)

	items, err := f.svc.AppointmentsForRange(context.Background(), f.clinicID, from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 appointments in [from, to), got %d", len(items))
	}

	if _, err := f.svc.AppointmentsForRange(context.Background(), f.clinicID, to, from); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAppointmentsForDate_ClinicTimezone(t *testing.T) {
	f := newFixture(t)
	st := clinic.DefaultSettings(f.clinicID) // Asia/Kolkata
	f.settings.settings = st

	// 2024-03-05 19:00 UTC is 2024-03-06 00:30 in Kolkata.
	f.book(t, time.Date(2024, 3, 5, 19, 0, 0, 0, time.UTC))
	// 2024-03-06 19:00 UTC is already 2024-03-07 in Kolkata.
	f.book(t, time.Date(2024, 3, 6, 19, 0, 0, 0, time.UTC))

	items, err := f.svc.AppointmentsForDate(context.Background(), f.clinicID, "2024-03-06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(items))
	}

	if _, err := f.svc.AppointmentsForDate(context.Background(), f.clinicID, "06/03/2024"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDayView_Today(t *testing.T) {
	f := newFixture(t)
	// 14:05 UTC is 19:35 in the default Asia/Kolkata zone, still 6 March.
	f.book(t, time.Date(2024, 3, 6, 14, 5, 0, 0, time.UTC))

	view, err := f.svc.DayView(context.Background(), f.clinicID, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Date != "2024-03-06" {
		t.Errorf("expected today, got %s", view.Date)
	}
	if view.Total != 1 {
		t.Errorf("expected 1 appointment, got %d", view.Total)
	}
}

func TestWeekView(t *testing.T) {
	f := newFixture(t)
	f.settings.settings = &clinic.Settings{ClinicID: f.clinicID, Timezone: "UTC", DefaultAppointmentDuration: 30}
	f.book(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))   // Monday
	f.book(t, time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)) // Sunday
	f.book(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))  // next Monday

	week, err := f.svc.WeekView(context.Background(), f.clinicID, "2024-03-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if week.StartDate != "2024-03-04" || week.EndDate != "2024-03-10" {
		t.Errorf("unexpected week bounds %s..%s", week.StartDate, week.EndDate)
	}
	if len(week.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(week.Days))
	}
	if week.Days[0].Total != 1 || week.Days[6].Total != 1 {
		t.Errorf("expected Monday and Sunday to have one appointment each")
	}
}
