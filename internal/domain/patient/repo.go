package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
	// Search returns newest first. An empty query matches every patient.
	Search(ctx context.Context, clinicID uuid.UUID, query string, limit int) ([]*Patient, error)
	// ListCreatedBetween filters on [from, to); nil bounds are open. Ordered by name.
	ListCreatedBetween(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]*Patient, error)
	// ExistingPhones reports which of phones already belong to a clinic patient.
	ExistingPhones(ctx context.Context, clinicID uuid.UUID, phones []string) (map[string]bool, error)
	TouchLastVisit(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error
	RecentAppointments(ctx context.Context, clinicID, patientID uuid.UUID, limit int) ([]AppointmentSummary, error)
	RecentInvoices(ctx context.Context, clinicID, patientID uuid.UUID, limit int) ([]InvoiceSummary, error)
}
