package clinical

import (
	"context"

	"github.com/google/uuid"
)

type ProcedureRepository interface {
	Create(ctx context.Context, p *Procedure) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Procedure, error)
	Update(ctx context.Context, p *Procedure) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
	List(ctx context.Context, clinicID uuid.UUID, category string, activeOnly bool) ([]*Procedure, error)
	IsReferenced(ctx context.Context, id uuid.UUID) (bool, error)
}

type RecordRepository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Record, error)
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
	ListByAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID) ([]*Record, error)
	// AppointmentPatient returns the patient of an appointment in the clinic.
	AppointmentPatient(ctx context.Context, clinicID, appointmentID uuid.UUID) (uuid.UUID, error)
}
