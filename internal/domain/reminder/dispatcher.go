package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/domain/scheduling"
	"github.com/dentaldesk/dentaldesk/internal/platform/metrics"
	"github.com/dentaldesk/dentaldesk/internal/platform/notification"
)

// skipStatuses are appointments nobody is expected to attend.
var skipStatuses = []string{scheduling.StatusCancelled, scheduling.StatusNoShow, scheduling.StatusCompleted}

// Dispatcher sends next-day appointment reminders and records every attempt
// as a notification.
type Dispatcher struct {
	repo      Repository
	gateway   notification.Gateway
	templates *notification.TemplateEngine
	loc       *time.Location
	logger    zerolog.Logger
}

// NewDispatcher uses loc to decide what "tomorrow" is and to format times for
// clinics without a timezone of their own.
func NewDispatcher(repo Repository, gateway notification.Gateway, loc *time.Location, logger zerolog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		repo:      repo,
		gateway:   gateway,
		templates: notification.NewTemplateEngine(),
		loc:       loc,
		logger:    logger.With().Str("component", "reminders").Logger(),
	}
}

// Window is tomorrow, [00:00, 24:00) in loc.
func Window(now time.Time, loc *time.Location) (time.Time, time.Time) {
	now = now.In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (d *Dispatcher) localTime(due Due) string {
	loc := d.loc
	if due.Timezone != "" {
		if l, err := time.LoadLocation(due.Timezone); err == nil {
			loc = l
		}
	}
	return due.ScheduledAt.In(loc).Format("15:04")
}

// Message renders the reminder text for one appointment.
func (d *Dispatcher) Message(due Due) (string, error) {
	return d.templates.Render(notification.TemplateAppointmentReminder, map[string]string{
		"doctor": due.DoctorLastName,
		"time":   d.localTime(due),
	})
}

// Dispatch reminds every patient with an appointment tomorrow. Appointments
// are handled independently: a failure on one is recorded and the run goes
// on. Only loading the due list, or cancellation, aborts the run.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) (*Result, error) {
	from, to := Window(now, d.loc)
	due, err := d.repo.DueBetween(ctx, from, to, skipStatuses)
	if err != nil {
		return nil, fmt.Errorf("load due appointments: %w", err)
	}

	res := &Result{Items: []Item{}}
	for _, appt := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.TrimSpace(appt.Phone) == "" {
			res.Skipped++
			continue
		}
		item := d.remind(ctx, appt)
		res.Processed++
		if item.Status == StatusSent {
			res.Sent++
		} else {
			res.Failed++
		}
		metrics.RecordReminder(item.Status)
		res.Items = append(res.Items, item)
	}

	d.logger.Info().
		Time("from", from).
		Int("processed", res.Processed).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("reminder run finished")
	return res, nil
}

func (d *Dispatcher) remind(ctx context.Context, appt Due) Item {
	item := Item{AppointmentID: appt.AppointmentID, Patient: appt.PatientFirstName, Status: StatusFailed}
	log := d.logger.With().Str("appointment_id", appt.AppointmentID.String()).Logger()

	msg, err := d.Message(appt)
	if err != nil {
		item.Error = err.Error()
		log.Error().Err(err).Msg("render reminder")
		return item
	}

	patientID, apptID := appt.PatientID, appt.AppointmentID
	n := &Notification{
		ClinicID:      appt.ClinicID,
		PatientID:     &patientID,
		AppointmentID: &apptID,
		Type:          TypeSMS,
		Status:        StatusPending,
		Recipient:     appt.Phone,
		Message:       msg,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		item.Error = "could not record notification"
		log.Error().Err(err).Msg("create notification")
		return item
	}

	sent, sendErr := d.gateway.Send(ctx, appt.Phone, msg)
	if sendErr != nil {
		item.Error = sendErr.Error()
		log.Warn().Err(sendErr).Msg("reminder not delivered")
		if err := d.repo.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
			log.Error().Err(err).Msg("mark notification failed")
		}
		return item
	}

	if err := d.repo.MarkSent(ctx, n.ID, sent.MessageID, time.Now()); err != nil {
		// The SMS went out; only the bookkeeping is missing.
		item.Error = "could not update notification"
		log.Error().Err(err).Str("provider_id", sent.MessageID).Msg("mark notification sent")
		return item
	}
	item.Status = StatusSent
	return item
}

// ListNotifications pages through a clinic's notifications, newest first.
func (d *Dispatcher) ListNotifications(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	items, total, err := d.repo.List(ctx, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Notification{}
	}
	return items, total, nil
}
