package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	// UpdateStatus moves the appointment from one status to another. It fails
	// with a conflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to string) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
	// ListBetween returns appointments with from <= scheduled_at < to, ordered
	// by start time.
	ListBetween(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error)
	DoctorInClinic(ctx context.Context, clinicID, doctorID uuid.UUID) (bool, error)
}
