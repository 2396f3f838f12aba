package patient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
	"github.com/dentaldesk/dentaldesk/internal/platform/metrics"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
)

const (
	searchLimit             = 50
	recentAppointmentsLimit = 10
	recentInvoicesLimit     = 5
)

// VisitScheduler books the first appointment of an imported patient. It runs
// inside the import row's transaction.
type VisitScheduler interface {
	ScheduleFirstVisit(ctx context.Context, clinicID, patientID uuid.UUID, v FirstVisit) error
}

// CacheInvalidator drops cached views for a clinic.
type CacheInvalidator interface {
	Invalidate(clinicID uuid.UUID, tags ...string)
}

type Service struct {
	repo   Repository
	tx     db.TxRunner
	visits VisitScheduler
	cache  CacheInvalidator
	region string
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, region string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, region: region, logger: logger, now: time.Now}
}

// SetVisitScheduler enables first-visit booking during import.
func (s *Service) SetVisitScheduler(v VisitScheduler) { s.visits = v }

func (s *Service) SetCache(c CacheInvalidator) { s.cache = c }

// invalidate drops dashboard and invoice views; both embed patient names and
// deleting a patient cascades to its invoices.
func (s *Service) invalidate(clinicID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(clinicID, middleware.TagDashboard, middleware.TagBilling)
	}
}

func (s *Service) ListPatients(ctx context.Context, clinicID uuid.UUID, query string) ([]*Patient, error) {
	return s.repo.Search(ctx, clinicID, query, searchLimit)
}

func (s *Service) GetPatient(ctx context.Context, clinicID, id uuid.UUID) (*Detail, error) {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.RecentAppointments(ctx, clinicID, id, recentAppointmentsLimit)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	invoices, err := s.repo.RecentInvoices(ctx, clinicID, id, recentInvoicesLimit)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return &Detail{Patient: p, Appointments: appts, Invoices: invoices}, nil
}

func (s *Service) build(clinicID uuid.UUID, in *Input) (*Patient, error) {
	dob, err := validate(in, s.now())
	if err != nil {
		return nil, err
	}
	return &Patient{
		ClinicID:       clinicID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          CanonicalPhone(in.Phone, s.region),
		Email:          optional(in.Email),
		DateOfBirth:    dob,
		Gender:         optional(in.Gender),
		Address:        optional(in.Address),
		Allergies:      cleanAllergies(in.Allergies),
		MedicalHistory: optional(in.MedicalHistory),
		Notes:          optional(in.Notes),
	}, nil
}

func (s *Service) CreatePatient(ctx context.Context, clinicID uuid.UUID, in Input) (*Patient, error) {
	p, err := s.build(clinicID, &in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(clinicID)
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, clinicID, id uuid.UUID, in Input) (*Patient, error) {
	existing, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.build(clinicID, &in)
	if err != nil {
		return nil, err
	}
	p.ID = existing.ID
	p.LastVisitDate = existing.LastVisitDate
	p.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.invalidate(clinicID)
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, clinicID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		return err
	}
	s.invalidate(clinicID)
	return nil
}

// TouchLastVisit records a completed visit.
func (s *Service) TouchLastVisit(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error {
	return s.repo.TouchLastVisit(ctx, clinicID, id, at)
}

// ExportPatients lists patients created in [from, to). A zero bound is open.
func (s *Service) ExportPatients(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Patient, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, apperr.Validation("from must be before to")
	}
	var fromPtr, toPtr *time.Time
	if !from.IsZero() {
		fromPtr = &from
	}
	if !to.IsZero() {
		toPtr = &to
	}
	return s.repo.ListCreatedBetween(ctx, clinicID, fromPtr, toPtr)
}

// ImportPatients creates the rows whose phone is new to the clinic and to the
// batch. Each row commits on its own; a failing row is reported and does not
// affect the others.
func (s *Service) ImportPatients(ctx context.Context, clinicID uuid.UUID, rows []ImportRow) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, apperr.Validation("no rows to import")
	}

	res := &ImportResult{Errors: []ImportError{}}
	built := make([]*Patient, len(rows))
	phones := make([]string, 0, len(rows))
	for i := range rows {
		p, err := s.build(clinicID, &rows[i].Input)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ImportError{Row: i + 1, Message: err.Error()})
			continue
		}
		built[i] = p
		phones = append(phones, p.Phone)
	}

	seen, err := s.repo.ExistingPhones(ctx, clinicID, phones)
	if err != nil {
		return nil, fmt.Errorf("check existing phones: %w", err)
	}

	for i, p := range built {
		if p == nil {
			continue
		}
		if seen[p.Phone] {
			res.Skipped++
			continue
		}

		visit := rows[i].FirstVisit
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, p); err != nil {
				return err
			}
			if visit != nil && s.visits != nil {
				return s.visits.ScheduleFirstVisit(ctx, clinicID, p.ID, *visit)
			}
			return nil
		})
		if err != nil {
			s.logger.Warn().Err(err).Int("row", i+1).Str("clinic_id", clinicID.String()).Msg("patient import row failed")
			res.Failed++
			msg := err.Error()
			if apperr.Status(err) == http.StatusInternalServerError {
				msg = "could not save row"
			}
			res.Errors = append(res.Errors, ImportError{Row: i + 1, Message: msg})
			continue
		}
		seen[p.Phone] = true
		res.Created++
	}

	metrics.RecordImport(res.Created, res.Skipped, res.Failed)
	if res.Created > 0 {
		s.invalidate(clinicID)
	}
	s.logger.Info().
		Str("clinic_id", clinicID.String()).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("patient import finished")
	return res, nil
}
