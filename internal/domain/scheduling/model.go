package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusScheduled  = "SCHEDULED"
	StatusConfirmed  = "CONFIRMED"
	StatusSeated     = "SEATED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusCancelled  = "CANCELLED"
	StatusNoShow     = "NO_SHOW"
)

// Statuses lists every appointment status in workflow order.
var Statuses = []string{
	StatusScheduled, StatusConfirmed, StatusSeated, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

const (
	TypeCheckup      = "CHECKUP"
	TypeTreatment    = "TREATMENT"
	TypeEmergency    = "EMERGENCY"
	TypeFollowUp     = "FOLLOW_UP"
	TypeConsultation = "CONSULTATION"
)

var validTypes = map[string]bool{
	TypeCheckup: true, TypeTreatment: true, TypeEmergency: true,
	TypeFollowUp: true, TypeConsultation: true,
}

const (
	MinDuration = 15
	MaxDuration = 240
)

// transitions lists the statuses reachable from each status. Terminal
// statuses can only be re-opened.
var transitions = map[string][]string{
	StatusScheduled:  {StatusConfirmed, StatusSeated, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusSeated, StatusCancelled, StatusNoShow, StatusScheduled},
	StatusSeated:     {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {StatusScheduled},
	StatusCancelled:  {StatusScheduled},
	StatusNoShow:     {StatusScheduled},
}

func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

func ValidType(t string) bool { return validTypes[t] }

// CanTransition reports whether an appointment may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return ValidStatus(to)
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID             uuid.UUID `json:"id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Duration       int       `json:"duration"`
	Status         string    `json:"status"`
	Type           string    `json:"type"`
	ChiefComplaint *string   `json:"chief_complaint,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	PatientName    string    `json:"patient_name,omitempty"`
	PatientPhone   string    `json:"patient_phone,omitempty"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.Duration) * time.Minute)
}

// NewAppointment is the create payload. A nil DoctorID books the acting user.
// A zero Duration uses the clinic default.
type NewAppointment struct {
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	Duration       int       `json:"duration"`
	Type           string    `json:"type"`
	ChiefComplaint string    `json:"chief_complaint"`
	Notes          string    `json:"notes"`
}

// AppointmentUpdate reschedules or edits an appointment; nil fields are kept.
type AppointmentUpdate struct {
	ScheduledAt    *time.Time `json:"scheduled_at"`
	Duration       *int       `json:"duration"`
	Type           *string    `json:"type"`
	DoctorID       *uuid.UUID `json:"doctor_id"`
	ChiefComplaint *string    `json:"chief_complaint"`
	Notes          *string    `json:"notes"`
}
