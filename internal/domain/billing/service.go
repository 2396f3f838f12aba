package billing

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dentaldesk/internal/domain/clinic"
	"github.com/dentaldesk/dentaldesk/internal/domain/clinical"
	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
	"github.com/dentaldesk/dentaldesk/internal/platform/metrics"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
)

// SettingsSource supplies the invoice prefix and timezone of a clinic.
type SettingsSource interface {
	GetSettings(ctx context.Context, clinicID uuid.UUID) (*clinic.Settings, error)
}

// TreatmentSource lists the billable treatments of an appointment.
type TreatmentSource interface {
	BillableLines(ctx context.Context, clinicID, appointmentID uuid.UUID) (*clinical.Billable, error)
}

type CacheInvalidator interface {
	Invalidate(clinicID uuid.UUID, tags ...string)
}

type Service struct {
	repo       Repository
	tx         db.TxRunner
	settings   SettingsSource
	treatments TreatmentSource
	cache      CacheInvalidator
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, settings SettingsSource, treatments TreatmentSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, settings: settings, treatments: treatments, logger: logger, now: time.Now}
}

func (s *Service) SetCache(c CacheInvalidator) { s.cache = c }

func (s *Service) invalidate(clinicID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(clinicID, middleware.TagBilling, middleware.TagDashboard)
	}
}

func (s *Service) clinicSettings(ctx context.Context, clinicID uuid.UUID) (*clinic.Settings, error) {
	if s.settings == nil {
		return clinic.DefaultSettings(clinicID), nil
	}
	st, err := s.settings.GetSettings(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic settings: %w", err)
	}
	return st, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func validateInvoice(in *NewInvoice) error {
	if in.PatientID == uuid.Nil {
		return apperr.Validation("patient is required")
	}
	if len(in.Items) == 0 {
		return apperr.Validation("at least one item is required")
	}
	for i := range in.Items {
		it := &in.Items[i]
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" || utf8.RuneCountInString(it.Description) > 200 {
			return apperr.Validation("item %d: description must be between 1 and 200 characters", i+1)
		}
		if it.Quantity < 1 {
			return apperr.Validation("item %d: quantity must be at least 1", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Validation("item %d: unit price must not be negative", i+1)
		}
	}
	if in.DiscountType == "" {
		in.DiscountType = DiscountFixed
	}
	if in.DiscountType != DiscountFixed && in.DiscountType != DiscountPercentage {
		return apperr.Validation("discount type must be percentage or fixed")
	}
	if in.Discount.IsNegative() {
		return apperr.Validation("discount must not be negative")
	}
	if in.DiscountType == DiscountPercentage && in.Discount.GreaterThan(hundred) {
		return apperr.Validation("percentage discount must not exceed 100")
	}
	if in.Tax.IsNegative() {
		return apperr.Validation("tax must not be negative")
	}
	if utf8.RuneCountInString(in.Notes) > 1000 {
		return apperr.Validation("notes must be at most 1000 characters")
	}
	return nil
}

// CreateInvoice prices the items, assigns the next invoice number and stores
// the invoice with its items in one transaction.
func (s *Service) CreateInvoice(ctx context.Context, clinicID uuid.UUID, in NewInvoice) (*Invoice, error) {
	inv, err := s.createInvoice(ctx, clinicID, in)
	if err != nil {
		return nil, err
	}
	metrics.RecordInvoiceCreated(metrics.SourceManual)
	return inv, nil
}

func (s *Service) createInvoice(ctx context.Context, clinicID uuid.UUID, in NewInvoice) (*Invoice, error) {
	if err := validateInvoice(&in); err != nil {
		return nil, err
	}
	var due *time.Time
	if d := strings.TrimSpace(in.DueDate); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, apperr.Validation("due date must be YYYY-MM-DD")
		}
		due = &t
	}

	totals := ComputeTotals(in.Items, in.Discount, in.DiscountType, in.Tax)
	if totals.Total.IsNegative() {
		return nil, apperr.Validation("discount exceeds the invoice amount")
	}

	st, err := s.clinicSettings(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		ClinicID:      clinicID,
		PatientID:     in.PatientID,
		AppointmentID: in.AppointmentID,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		DiscountType:  in.DiscountType,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Status:        StatusPending,
		DueDate:       due,
		Notes:         optional(in.Notes),
		Items:         make([]*Item, len(in.Items)),
		Payments:      []*Payment{},
	}
	for i, it := range in.Items {
		inv.Items[i] = &Item{
			Description:      it.Description,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice.Round(2),
			Total:            totals.ItemTotals[i],
			ClinicalRecordID: it.ClinicalRecordID,
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.PatientInClinic(ctx, clinicID, in.PatientID)
		if err != nil {
			return fmt.Errorf("check patient: %w", err)
		}
		if !ok {
			return apperr.NotFound("patient")
		}
		if in.AppointmentID != nil {
			owner, err := s.repo.AppointmentPatient(ctx, clinicID, *in.AppointmentID)
			if err != nil {
				return err
			}
			if owner != in.PatientID {
				return apperr.Validation("appointment belongs to a different patient")
			}
			if err := s.checkNoLiveInvoice(ctx, clinicID, *in.AppointmentID); err != nil {
				return err
			}
		}

		seq, err := s.repo.NextSequence(ctx, clinicID)
		if err != nil {
			return fmt.Errorf("next invoice number: %w", err)
		}
		prefix := st.InvoicePrefix
		if prefix == "" {
			prefix = clinic.DefaultInvoicePrefix
		}
		inv.InvoiceNumber = FormatInvoiceNumber(prefix, s.now().In(st.Location(time.UTC)).Year(), seq)
		return s.repo.Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(clinicID)
	s.logger.Info().
		Str("clinic_id", clinicID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Str("total", inv.Total.StringFixed(2)).
		Msg("invoice created")
	return inv, nil
}

func (s *Service) checkNoLiveInvoice(ctx context.Context, clinicID, appointmentID uuid.UUID) error {
	number, err := s.repo.LiveInvoiceNumber(ctx, clinicID, appointmentID)
	if err != nil {
		return fmt.Errorf("check existing invoice: %w", err)
	}
	if number != "" {
		return apperr.Conflict("appointment already has invoice %s", number)
	}
	return nil
}

// GenerateFromAppointment bills the treatments recorded for an appointment.
func (s *Service) GenerateFromAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID) (*Invoice, error) {
	if s.treatments == nil {
		return nil, fmt.Errorf("treatment source not configured")
	}
	b, err := s.treatments.BillableLines(ctx, clinicID, appointmentID)
	if err != nil {
		return nil, err
	}
	if len(b.Lines) == 0 {
		return nil, apperr.BusinessRule("no treatments found for this appointment")
	}
	if err := s.checkNoLiveInvoice(ctx, clinicID, appointmentID); err != nil {
		return nil, err
	}

	items := make([]NewItem, len(b.Lines))
	for i, l := range b.Lines {
		desc := l.ProcedureName
		if l.ToothNumber != nil {
			desc = fmt.Sprintf("%s (Tooth %d)", desc, *l.ToothNumber)
		}
		recordID := l.RecordID
		items[i] = NewItem{Description: desc, Quantity: 1, UnitPrice: l.UnitPrice, ClinicalRecordID: &recordID}
	}

	apptID := appointmentID
	inv, err := s.createInvoice(ctx, clinicID, NewInvoice{
		PatientID:     b.PatientID,
		AppointmentID: &apptID,
		Items:         items,
		DiscountType:  DiscountFixed,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordInvoiceCreated(metrics.SourceAppointment)
	return inv, nil
}

// RecordPayment adds a payment and settles the invoice under a row lock, so
// concurrent payments on one invoice apply one after another.
func (s *Service) RecordPayment(ctx context.Context, clinicID, invoiceID uuid.UUID, in NewPayment) (*PaymentReceipt, error) {
	amount := in.Amount.Round(2)
	if !amount.Equal(in.Amount) {
		return nil, apperr.Validation("amount must have at most 2 decimal places")
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
	if !ValidMethod(in.Method) {
		return nil, apperr.Validation("invalid payment method %q", in.Method)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Reference)) > 100 {
		return nil, apperr.Validation("reference must be at most 100 characters")
	}

	p := &Payment{
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    in.Method,
		Reference: optional(in.Reference),
		Notes:     optional(in.Notes),
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, clinicID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled || inv.Status == StatusRefunded {
			return apperr.BusinessRule("cannot record a payment on a %s invoice", strings.ToLower(inv.Status))
		}
		if err := s.repo.AddPayment(ctx, p); err != nil {
			return err
		}
		paid, err := s.repo.RecomputePaid(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("recompute paid amount: %w", err)
		}
		return s.repo.UpdateStatus(ctx, invoiceID, StatusAfterPayment(paid, inv.Total))
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayment(p.Method)
	s.invalidate(clinicID)

	inv, err := s.repo.GetByID(ctx, clinicID, invoiceID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("clinic_id", clinicID.String()).
		Str("invoice_number", inv.InvoiceNumber).
		Str("amount", p.Amount.StringFixed(2)).
		Str("status", inv.Status).
		Msg("payment recorded")
	return &PaymentReceipt{Payment: p, Invoice: inv}, nil
}

// CancelInvoice cancels an invoice that has not been paid against.
func (s *Service) CancelInvoice(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		inv, err := s.repo.GetForUpdate(ctx, clinicID, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return nil
		}
		if !inv.AmountPaid.IsZero() {
			return apperr.BusinessRule("cannot cancel an invoice with recorded payments")
		}
		return s.repo.UpdateStatus(ctx, id, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(clinicID)
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) GetInvoice(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

func (s *Service) ListInvoices(ctx context.Context, clinicID uuid.UUID, f InvoiceFilter) ([]*Invoice, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status %q", f.Status)
	}
	items, total, err := s.repo.List(ctx, clinicID, f)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []*Invoice{}
	}
	return items, total, nil
}

func (s *Service) ListPayments(ctx context.Context, clinicID, invoiceID uuid.UUID) ([]*Payment, error) {
	if _, err := s.repo.GetByID(ctx, clinicID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}
