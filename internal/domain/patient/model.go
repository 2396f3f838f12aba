package patient

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Patient struct {
	ID             uuid.UUID  `json:"id"`
	ClinicID       uuid.UUID  `json:"clinic_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Phone          string     `json:"phone"`
	Email          *string    `json:"email,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Gender         *string    `json:"gender,omitempty"`
	Address        *string    `json:"address,omitempty"`
	Allergies      []string   `json:"allergies"`
	MedicalHistory *string    `json:"medical_history,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	LastVisitDate  *time.Time `json:"last_visit_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Input is the create/update payload. DateOfBirth is an ISO date (YYYY-MM-DD).
type Input struct {
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Phone          string   `json:"phone"`
	Email          string   `json:"email"`
	DateOfBirth    string   `json:"date_of_birth"`
	Gender         string   `json:"gender"`
	Address        string   `json:"address"`
	Allergies      []string `json:"allergies"`
	MedicalHistory string   `json:"medical_history"`
	Notes          string   `json:"notes"`
}

// AppointmentSummary is a visit shown on the patient page.
type AppointmentSummary struct {
	ID          uuid.UUID `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Duration    int       `json:"duration"`
	Status      string    `json:"status"`
	Type        string    `json:"type"`
	DoctorName  string    `json:"doctor_name"`
	Treatments  []string  `json:"treatments"`
}

type InvoiceSummary struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Detail is a patient with recent history.
type Detail struct {
	*Patient
	Appointments []AppointmentSummary `json:"appointments"`
	Invoices     []InvoiceSummary     `json:"invoices"`
}

// FirstVisit optionally schedules an appointment for an imported patient.
type FirstVisit struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Type        string    `json:"type"`
	Duration    int       `json:"duration"`
	Notes       string    `json:"notes"`
}

type ImportRow struct {
	Input
	FirstVisit *FirstVisit `json:"first_visit,omitempty"`
}

type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors"`
}
