package reminder

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending = "PENDING"
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"

	TypeSMS = "SMS"
)

// Notification is the stored record of one outbound message.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	ClinicID      uuid.UUID  `json:"clinic_id"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Recipient     string     `json:"recipient"`
	Message       string     `json:"message"`
	ProviderID    *string    `json:"provider_id,omitempty"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// Due is an appointment that should be reminded, with what the message needs.
type Due struct {
	AppointmentID    uuid.UUID
	ClinicID         uuid.UUID
	PatientID        uuid.UUID
	PatientFirstName string
	Phone            string
	DoctorLastName   string
	ScheduledAt      time.Time
	// Timezone is the clinic's IANA zone, empty when the clinic has none.
	Timezone string
}

type Item struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Patient       string    `json:"patient"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// Result summarises one dispatch run. Processed counts the reminders that
// were attempted; Skipped those without a phone number.
type Result struct {
	Processed int    `json:"processed"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Items     []Item `json:"results"`
}
