package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// NextSequence increments and returns the clinic's invoice counter.
	NextSequence(ctx context.Context, clinicID uuid.UUID) (int64, error)
	// Create stores the invoice and its items.
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error)
	// GetForUpdate loads the invoice row locked until the transaction ends.
	GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, clinicID uuid.UUID, f InvoiceFilter) ([]*Invoice, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	AddPayment(ctx context.Context, p *Payment) error
	// RecomputePaid sets amount_paid to the sum of the invoice's payments.
	RecomputePaid(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)

	// LiveInvoiceNumber returns the number of a non-cancelled invoice for the
	// appointment, or "" when there is none.
	LiveInvoiceNumber(ctx context.Context, clinicID, appointmentID uuid.UUID) (string, error)
	PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error)
	AppointmentPatient(ctx context.Context, clinicID, appointmentID uuid.UUID) (uuid.UUID, error)
}
