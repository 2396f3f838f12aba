package clinical

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

type Service struct {
	procedures ProcedureRepository
	records    RecordRepository
	logger     zerolog.Logger
}

func NewService(procedures ProcedureRepository, records RecordRepository, logger zerolog.Logger) *Service {
	return &Service{procedures: procedures, records: records, logger: logger}
}

// -- Procedure catalogue --

func lengthBetween(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min || n > max {
		if min == 0 {
			return apperr.Validation("%s must be at most %d characters", field, max)
		}
		return apperr.Validation("%s must be between %d and %d characters", field, min, max)
	}
	return nil
}

func validateProcedure(in *ProcedureInput) error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)

	if err := lengthBetween("code", in.Code, 0, 20); err != nil {
		return err
	}
	if err := lengthBetween("name", in.Name, 2, 100); err != nil {
		return err
	}
	if err := lengthBetween("category", in.Category, 2, 50); err != nil {
		return err
	}
	if err := lengthBetween("description", in.Description, 0, 500); err != nil {
		return err
	}
	if in.StandardCost.IsNegative() {
		return apperr.Validation("standard cost must not be negative")
	}
	return nil
}

// generatedCode is used when a procedure is saved without a code.
func generatedCode() string {
	return "PROC-" + strings.ToUpper(uuid.NewString()[:8])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) ListProcedures(ctx context.Context, clinicID uuid.UUID, category string, includeInactive bool) ([]*Procedure, error) {
	items, err := s.procedures.List(ctx, clinicID, strings.TrimSpace(category), !includeInactive)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Procedure{}
	}
	return items, nil
}

func (s *Service) CreateProcedure(ctx context.Context, clinicID uuid.UUID, in ProcedureInput) (*Procedure, error) {
	if err := validateProcedure(&in); err != nil {
		return nil, err
	}
	if in.Code == "" {
		in.Code = generatedCode()
	}
	p := &Procedure{
		ClinicID:     clinicID,
		Code:         in.Code,
		Name:         in.Name,
		Category:     in.Category,
		StandardCost: in.StandardCost.Round(2),
		Description:  optional(in.Description),
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	if err := s.procedures.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) UpdateProcedure(ctx context.Context, clinicID, id uuid.UUID, in ProcedureInput) (*Procedure, error) {
	p, err := s.procedures.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if err := validateProcedure(&in); err != nil {
		return nil, err
	}
	if in.Code != "" {
		p.Code = in.Code
	}
	p.Name = in.Name
	p.Category = in.Category
	p.StandardCost = in.StandardCost.Round(2)
	p.Description = optional(in.Description)
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := s.procedures.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProcedure removes a procedure, or deactivates it when treatment
// records still point at it. It reports whether the row was kept.
func (s *Service) DeleteProcedure(ctx context.Context, clinicID, id uuid.UUID) (deactivated bool, err error) {
	p, err := s.procedures.GetByID(ctx, clinicID, id)
	if err != nil {
		return false, err
	}
	used, err := s.procedures.IsReferenced(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check procedure usage: %w", err)
	}
	if !used {
		return false, s.procedures.Delete(ctx, clinicID, id)
	}
	p.IsActive = false
	if err := s.procedures.Update(ctx, p); err != nil {
		return false, err
	}
	s.logger.Info().Str("procedure_id", id.String()).Msg("procedure in use, deactivated instead of deleted")
	return true, nil
}

// -- Treatment records --

func (s *Service) AddRecord(ctx context.Context, clinicID, appointmentID uuid.UUID, in NewRecord) (*Record, error) {
	if in.ProcedureID == uuid.Nil {
		return nil, apperr.Validation("procedure is required")
	}
	if in.ToothNumber != nil && (*in.ToothNumber < MinToothNumber || *in.ToothNumber > MaxToothNumber) {
		return nil, apperr.Validation("tooth number must be between %d and %d", MinToothNumber, MaxToothNumber)
	}
	if in.CostOverride != nil {
		if in.CostOverride.IsNegative() {
			return nil, apperr.Validation("cost override must not be negative")
		}
		rounded := in.CostOverride.Round(2)
		in.CostOverride = &rounded
	}
	in.Notes = strings.TrimSpace(in.Notes)
	if err := lengthBetween("notes", in.Notes, 0, 1000); err != nil {
		return nil, err
	}

	if _, err := s.records.AppointmentPatient(ctx, clinicID, appointmentID); err != nil {
		return nil, err
	}
	proc, err := s.procedures.GetByID(ctx, clinicID, in.ProcedureID)
	if err != nil {
		return nil, err
	}
	if !proc.IsActive {
		return nil, apperr.BusinessRule("procedure %s is inactive", proc.Code)
	}

	rec := &Record{
		ClinicID:      clinicID,
		AppointmentID: appointmentID,
		ProcedureID:   proc.ID,
		ToothNumber:   in.ToothNumber,
		CostOverride:  in.CostOverride,
		Notes:         optional(in.Notes),
		ProcedureCode: proc.Code,
		ProcedureName: proc.Name,
		StandardCost:  proc.StandardCost,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListRecords(ctx context.Context, clinicID, appointmentID uuid.UUID) ([]*Record, error) {
	if _, err := s.records.AppointmentPatient(ctx, clinicID, appointmentID); err != nil {
		return nil, err
	}
	items, err := s.records.ListByAppointment(ctx, clinicID, appointmentID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Record{}
	}
	return items, nil
}

func (s *Service) DeleteRecord(ctx context.Context, clinicID, id uuid.UUID) error {
	return s.records.Delete(ctx, clinicID, id)
}

// BillableLines collects the priced treatments of an appointment.
func (s *Service) BillableLines(ctx context.Context, clinicID, appointmentID uuid.UUID) (*Billable, error) {
	patientID, err := s.records.AppointmentPatient(ctx, clinicID, appointmentID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByAppointment(ctx, clinicID, appointmentID)
	if err != nil {
		return nil, err
	}
	b := &Billable{AppointmentID: appointmentID, PatientID: patientID, Lines: make([]BillableLine, 0, len(records))}
	for _, r := range records {
		b.Lines = append(b.Lines, BillableLine{
			RecordID:      r.ID,
			ProcedureName: r.ProcedureName,
			ToothNumber:   r.ToothNumber,
			UnitPrice:     r.Cost(),
		})
	}
	return b, nil
}

