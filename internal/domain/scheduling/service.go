package scheduling

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/domain/clinic"
	"github.com/dentaldesk/dentaldesk/internal/domain/patient"
	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
)

const maxRangeDays = 366

// SettingsSource supplies the clinic timezone and default duration.
type SettingsSource interface {
	GetSettings(ctx context.Context, clinicID uuid.UUID) (*clinic.Settings, error)
}

// VisitRecorder is told when a patient's appointment completes.
type VisitRecorder interface {
	TouchLastVisit(ctx context.Context, clinicID, patientID uuid.UUID, at time.Time) error
}

type CacheInvalidator interface {
	Invalidate(clinicID uuid.UUID, tags ...string)
}

type Service struct {
	repo     Repository
	tx       db.TxRunner
	settings SettingsSource
	visits   VisitRecorder
	cache    CacheInvalidator
	fallback *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, settings SettingsSource, fallback *time.Location, logger zerolog.Logger) *Service {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Service{repo: repo, tx: tx, settings: settings, fallback: fallback, logger: logger, now: time.Now}
}

func (s *Service) SetVisitRecorder(v VisitRecorder) { s.visits = v }

func (s *Service) SetCache(c CacheInvalidator) { s.cache = c }

func (s *Service) invalidate(clinicID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(clinicID, middleware.TagDashboard, middleware.TagBilling)
	}
}

func (s *Service) clinicSettings(ctx context.Context, clinicID uuid.UUID) (*clinic.Settings, error) {
	if s.settings == nil {
		return clinic.DefaultSettings(clinicID), nil
	}
	st, err := s.settings.GetSettings(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic settings: %w", err)
	}
	return st, nil
}

func (s *Service) location(ctx context.Context, clinicID uuid.UUID) (*time.Location, error) {
	st, err := s.clinicSettings(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return st.Location(s.fallback), nil
}

func checkText(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return apperr.Validation("%s must be at most %d characters", field, max)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) checkDoctor(ctx context.Context, clinicID, doctorID uuid.UUID) error {
	ok, err := s.repo.DoctorInClinic(ctx, clinicID, doctorID)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if !ok {
		return apperr.NotFound("doctor")
	}
	return nil
}

// CreateAppointment books a visit. actorID is the doctor when the payload
// names none. Overlapping bookings are allowed.
func (s *Service) CreateAppointment(ctx context.Context, clinicID, actorID uuid.UUID, in NewAppointment) (*Appointment, error) {
	if in.DoctorID == uuid.Nil {
		in.DoctorID = actorID
	}
	a, err := s.create(ctx, clinicID, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("clinic_id", clinicID.String()).
		Str("appointment_id", a.ID.String()).
		Time("scheduled_at", a.ScheduledAt).
		Msg("appointment created")
	return a, nil
}

// ScheduleFirstVisit books the first appointment of an imported patient.
func (s *Service) ScheduleFirstVisit(ctx context.Context, clinicID, patientID uuid.UUID, v patient.FirstVisit) error {
	typ := v.Type
	if typ == "" {
		typ = TypeConsultation
	}
	_, err := s.create(ctx, clinicID, NewAppointment{
		PatientID:   patientID,
		DoctorID:    v.DoctorID,
		ScheduledAt: v.ScheduledAt,
		Duration:    v.Duration,
		Type:        typ,
		Notes:       v.Notes,
	})
	return err
}

func (s *Service) create(ctx context.Context, clinicID uuid.UUID, in NewAppointment) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, apperr.Validation("doctor is required")
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperr.Validation("appointment date is required")
	}
	if !ValidType(in.Type) {
		return nil, apperr.Validation("invalid appointment type %q", in.Type)
	}
	if in.Duration == 0 {
		st, err := s.clinicSettings(ctx, clinicID)
		if err != nil {
			return nil, err
		}
		in.Duration = st.DefaultAppointmentDuration
		if in.Duration < MinDuration || in.Duration > MaxDuration {
			in.Duration = clinic.DefaultAppointmentDuration
		}
	}
	if in.Duration < MinDuration || in.Duration > MaxDuration {
		return nil, apperr.Validation("duration must be between %d and %d minutes", MinDuration, MaxDuration)
	}
	if err := checkText("chief complaint", in.ChiefComplaint, 500); err != nil {
		return nil, err
	}
	if err := checkText("notes", in.Notes, 1000); err != nil {
		return nil, err
	}

	ok, err := s.repo.PatientInClinic(ctx, clinicID, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	if err := s.checkDoctor(ctx, clinicID, in.DoctorID); err != nil {
		return nil, err
	}

	a := &Appointment{
		ClinicID:       clinicID,
		PatientID:      in.PatientID,
		DoctorID:       in.DoctorID,
		ScheduledAt:    in.ScheduledAt,
		Duration:       in.Duration,
		Status:         StatusScheduled,
		Type:           in.Type,
		ChiefComplaint: optional(in.ChiefComplaint),
		Notes:          optional(in.Notes),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.invalidate(clinicID)
	return s.repo.GetByID(ctx, clinicID, a.ID)
}

func (s *Service) GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) UpdateAppointment(ctx context.Context, clinicID, id uuid.UUID, up AppointmentUpdate) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if up.ScheduledAt != nil {
		if up.ScheduledAt.IsZero() {
			return nil, apperr.Validation("appointment date is required")
		}
		a.ScheduledAt = *up.ScheduledAt
	}
	if up.Duration != nil {
		if *up.Duration < MinDuration || *up.Duration > MaxDuration {
			return nil, apperr.Validation("duration must be between %d and %d minutes", MinDuration, MaxDuration)
		}
		a.Duration = *up.Duration
	}
	if up.Type != nil {
		if !ValidType(*up.Type) {
			return nil, apperr.Validation("invalid appointment type %q", *up.Type)
		}
		a.Type = *up.Type
	}
	if up.ChiefComplaint != nil {
		if err := checkText("chief complaint", *up.ChiefComplaint, 500); err != nil {
			return nil, err
		}
		a.ChiefComplaint = optional(*up.ChiefComplaint)
	}
	if up.Notes != nil {
		if err := checkText("notes", *up.Notes, 1000); err != nil {
			return nil, err
		}
		a.Notes = optional(*up.Notes)
	}
	if up.DoctorID != nil && *up.DoctorID != a.DoctorID {
		if err := s.checkDoctor(ctx, clinicID, *up.DoctorID); err != nil {
			return nil, err
		}
		a.DoctorID = *up.DoctorID
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.invalidate(clinicID)
	return s.repo.GetByID(ctx, clinicID, id)
}

// SetStatus moves an appointment through its workflow. Completing a visit
// updates the patient's last visit date in the same transaction.
func (s *Service) SetStatus(ctx context.Context, clinicID, id uuid.UUID, status string) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, apperr.Validation("invalid status %q", status)
	}
	a, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if a.Status == status {
		return a, nil
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.BusinessRule("cannot change status from %s to %s", a.Status, status)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, clinicID, id, a.Status, status); err != nil {
			return err
		}
		if status == StatusCompleted && s.visits != nil {
			return s.visits.TouchLastVisit(ctx, clinicID, a.PatientID, s.now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("clinic_id", clinicID.String()).
		Str("appointment_id", id.String()).
		Str("from", a.Status).
		Str("to", status).
		Msg("appointment status changed")
	a.Status = status
	s.invalidate(clinicID)
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, clinicID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		return err
	}
	s.invalidate(clinicID)
	return nil
}

// AppointmentsForRange lists appointments starting in [from, to).
func (s *Service) AppointmentsForRange(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperr.Validation("from and to are required")
	}
	if !from.Before(to) {
		return nil, apperr.Validation("from must be before to")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, apperr.Validation("range must not exceed %d days", maxRangeDays)
	}
	return s.list(ctx, clinicID, from, to)
}

func (s *Service) list(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	items, err := s.repo.ListBetween(ctx, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return items, nil
}

// parseDay resolves a YYYY-MM-DD date to local midnight. Empty means today.
func (s *Service) parseDay(date string, loc *time.Location) (time.Time, error) {
	if date == "" {
		return StartOfDay(s.now(), loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
	}
	return d, nil
}

// AppointmentsForDate lists the appointments of one day in the clinic's
// timezone.
func (s *Service) AppointmentsForDate(ctx context.Context, clinicID uuid.UUID, date string) ([]*Appointment, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	day, err := s.parseDay(date, loc)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, clinicID, day, day.AddDate(0, 0, 1))
}

func (s *Service) DayView(ctx context.Context, clinicID uuid.UUID, date string, workingHoursOnly bool) (*DayView, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	day, err := s.parseDay(date, loc)
	if err != nil {
		return nil, err
	}
	items, err := s.list(ctx, clinicID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	view := BuildDayView(day, loc, items, workingHoursOnly)
	return &view, nil
}

// WeekView returns the Monday-start week containing date.
func (s *Service) WeekView(ctx context.Context, clinicID uuid.UUID, date string) (*WeekView, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	day, err := s.parseDay(date, loc)
	if err != nil {
		return nil, err
	}
	start := StartOfWeek(day, loc)
	end := start.AddDate(0, 0, 7)
	items, err := s.list(ctx, clinicID, start, end)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]*Appointment, 7)
	for _, a := range items {
		key := a.ScheduledAt.In(loc).Format("2006-01-02")
		byDay[key] = append(byDay[key], a)
	}

	week := &WeekView{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.AddDate(0, 0, -1).Format("2006-01-02"),
		Days:      make([]DayView, 0, 7),
	}
	for i := 0; i < 7; i++ {
		d := start.AddDate(0, 0, i)
		week.Days = append(week.Days, BuildDayView(d, loc, byDay[d.Format("2006-01-02")], false))
	}
	return week, nil
}
