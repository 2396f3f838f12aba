package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusDraft     = "DRAFT"
	StatusPending   = "PENDING"
	StatusPartial   = "PARTIAL"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
	StatusRefunded  = "REFUNDED"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusPending: true, StatusPartial: true,
	StatusPaid: true, StatusCancelled: true, StatusRefunded: true,
}

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var validMethods = map[string]bool{
	"CASH": true, "CARD": true, "UPI": true, "BANK_TRANSFER": true, "INSURANCE": true, "OTHER": true,
}

func ValidMethod(m string) bool { return validMethods[m] }

type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	ClinicID        uuid.UUID       `json:"clinic_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PatientID       uuid.UUID       `json:"patient_id"`
	AppointmentID   *uuid.UUID      `json:"appointment_id,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountType    string          `json:"discount_type"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	Status          string          `json:"status"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PatientName     string          `json:"patient_name,omitempty"`
	AppointmentDate *time.Time      `json:"appointment_date,omitempty"`
	Items           []*Item         `json:"items"`
	Payments        []*Payment      `json:"payments"`
}

// Balance is what remains to be paid; never negative.
func (inv *Invoice) Balance() decimal.Decimal {
	b := inv.Total.Sub(inv.AmountPaid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

type Item struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Description      string          `json:"description"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Total            decimal.Decimal `json:"total"`
	ClinicalRecordID *uuid.UUID      `json:"clinical_record_id,omitempty"`
}

type Payment struct {
	ID        uuid.UUID       `json:"id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference *string         `json:"reference,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

type NewItem struct {
	Description      string          `json:"description"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ClinicalRecordID *uuid.UUID      `json:"clinical_record_id"`
}

// NewInvoice is the create payload. DueDate is YYYY-MM-DD.
type NewInvoice struct {
	PatientID     uuid.UUID       `json:"patient_id"`
	AppointmentID *uuid.UUID      `json:"appointment_id"`
	Items         []NewItem       `json:"items"`
	Discount      decimal.Decimal `json:"discount"`
	DiscountType  string          `json:"discount_type"`
	Tax           decimal.Decimal `json:"tax"`
	DueDate       string          `json:"due_date"`
	Notes         string          `json:"notes"`
}

type NewPayment struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

// PaymentReceipt is a recorded payment with the invoice state after it.
type PaymentReceipt struct {
	Payment *Payment `json:"payment"`
	Invoice *Invoice `json:"invoice"`
}

type InvoiceFilter struct {
	PatientID *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}

// Totals are the computed money fields of an invoice, each rounded to cents.
type Totals struct {
	ItemTotals []decimal.Decimal
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func cents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ComputeTotals prices the items: subtotal is the sum of unit price times
// quantity, a percentage discount applies to the subtotal, and tax is added
// after the discount.
func ComputeTotals(items []NewItem, discount decimal.Decimal, discountType string, tax decimal.Decimal) Totals {
	t := Totals{ItemTotals: make([]decimal.Decimal, len(items))}
	sum := decimal.Zero
	for i, it := range items {
		t.ItemTotals[i] = cents(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		sum = sum.Add(t.ItemTotals[i])
	}
	t.Subtotal = cents(sum)
	if discountType == DiscountPercentage {
		t.Discount = cents(t.Subtotal.Mul(discount).Div(hundred))
	} else {
		t.Discount = cents(discount)
	}
	t.Tax = cents(tax)
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax)
	return t
}

// FormatInvoiceNumber renders PREFIX-YYYY-NNNNNN.
func FormatInvoiceNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

// StatusAfterPayment is PAID once the paid amount covers the total.
func StatusAfterPayment(paid, total decimal.Decimal) string {
	if paid.GreaterThanOrEqual(total) {
		return StatusPaid
	}
	return StatusPartial
}
