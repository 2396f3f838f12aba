package clinical

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinToothNumber = 1
	MaxToothNumber = 85
)

// Procedure is an entry in the clinic's treatment catalogue.
type Procedure struct {
	ID           uuid.UUID       `json:"id"`
	ClinicID     uuid.UUID       `json:"clinic_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	StandardCost decimal.Decimal `json:"standard_cost"`
	Description  *string         `json:"description,omitempty"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProcedureInput struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	StandardCost decimal.Decimal `json:"standard_cost"`
	Description  string          `json:"description"`
	IsActive     *bool           `json:"is_active"`
}

// Record is a procedure performed during an appointment.
type Record struct {
	ID            uuid.UUID        `json:"id"`
	ClinicID      uuid.UUID        `json:"clinic_id"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
	ProcedureID   uuid.UUID        `json:"procedure_id"`
	ToothNumber   *int             `json:"tooth_number,omitempty"`
	CostOverride  *decimal.Decimal `json:"cost_override,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`

	ProcedureCode string          `json:"procedure_code"`
	ProcedureName string          `json:"procedure_name"`
	StandardCost  decimal.Decimal `json:"standard_cost"`
}

// Cost is the override when present, else the procedure's standard cost.
func (r *Record) Cost() decimal.Decimal {
	if r.CostOverride != nil {
		return *r.CostOverride
	}
	return r.StandardCost
}

type NewRecord struct {
	ProcedureID  uuid.UUID        `json:"procedure_id"`
	ToothNumber  *int             `json:"tooth_number"`
	CostOverride *decimal.Decimal `json:"cost_override"`
	Notes        string           `json:"notes"`
}

// BillableLine is one record ready to become an invoice item.
type BillableLine struct {
	RecordID      uuid.UUID
	ProcedureName string
	ToothNumber   *int
	UnitPrice     decimal.Decimal
}

// Billable is what an appointment owes for its recorded treatments.
type Billable struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	Lines         []BillableLine
}
