package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const invoiceSelect = `
	SELECT i.id, i.clinic_id, i.invoice_number, i.patient_id, i.appointment_id, i.subtotal, i.discount,
		i.discount_type, i.tax, i.total, i.amount_paid, i.status, i.due_date, i.notes, i.created_at, i.updated_at,
		p.first_name || ' ' || p.last_name, a.scheduled_at
	FROM invoices i
	JOIN patients p ON p.id = i.patient_id
	LEFT JOIN appointments a ON a.id = i.appointment_id`

func (r *repoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.ClinicID, &inv.InvoiceNumber, &inv.PatientID, &inv.AppointmentID, &inv.Subtotal,
		&inv.Discount, &inv.DiscountType, &inv.Tax, &inv.Total, &inv.AmountPaid, &inv.Status, &inv.DueDate, &inv.Notes,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.PatientName, &inv.AppointmentDate)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("invoice")
	}
	return &inv, err
}

func (r *repoPG) NextSequence(ctx context.Context, clinicID uuid.UUID) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice_sequences (clinic_id, last_value) VALUES ($1, 1)
		ON CONFLICT (clinic_id) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`, clinicID).Scan(&n)
	return n, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO invoices (id, clinic_id, invoice_number, patient_id, appointment_id, subtotal, discount,
			discount_type, tax, total, amount_paid, status, due_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		inv.ID, inv.ClinicID, inv.InvoiceNumber, inv.PatientID, inv.AppointmentID, inv.Subtotal, inv.Discount,
		inv.DiscountType, inv.Tax, inv.Total, inv.AmountPaid, inv.Status, inv.DueDate, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("an active invoice already exists for this appointment")
	}
	if err != nil {
		return err
	}

	for _, it := range inv.Items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.InvoiceID = inv.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, total, clinical_record_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, it.InvoiceID, it.Description, it.Quantity, it.UnitPrice, it.Total, it.ClinicalRecordID); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

func (r *repoPG) items(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, total, clinical_record_id
		FROM invoice_items WHERE invoice_id = $1 ORDER BY description, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Total,
			&it.ClinicalRecordID); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) withLines(ctx context.Context, inv *Invoice) (*Invoice, error) {
	var err error
	if inv.Items, err = r.items(ctx, inv.ID); err != nil {
		return nil, err
	}
	if inv.Payments, err = r.ListPayments(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	inv, err := r.scanInvoice(r.conn(ctx).QueryRow(ctx, invoiceSelect+` WHERE i.id = $1 AND i.clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return r.withLines(ctx, inv)
}

func (r *repoPG) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Invoice, error) {
	var inv Invoice
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, clinic_id, invoice_number, patient_id, total, amount_paid, status
		FROM invoices WHERE id = $1 AND clinic_id = $2
		FOR UPDATE`, id, clinicID,
	).Scan(&inv.ID, &inv.ClinicID, &inv.InvoiceNumber, &inv.PatientID, &inv.Total, &inv.AmountPaid, &inv.Status)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("invoice")
	}
	return &inv, err
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, f InvoiceFilter) ([]*Invoice, int, error) {
	where := []string{"i.clinic_id = $1"}
	args := []any{clinicID}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		where = append(where, fmt.Sprintf("i.patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices i WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := invoiceSelect + ` WHERE ` + cond +
		fmt.Sprintf(` ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, inv := range items {
		if _, err := r.withLines(ctx, inv); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) AddPayment(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, reference, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING paid_at`,
		p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.Notes,
	).Scan(&p.PaidAt)
}

func (r *repoPG) RecomputePaid(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE invoices
		SET amount_paid = (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1), updated_at = NOW()
		WHERE id = $1
		RETURNING amount_paid`, id).Scan(&paid)
	return paid, err
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, notes, paid_at
		FROM payments WHERE invoice_id = $1 ORDER BY paid_at DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []*Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

func (r *repoPG) LiveInvoiceNumber(ctx context.Context, clinicID, appointmentID uuid.UUID) (string, error) {
	var number string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT invoice_number FROM invoices
		WHERE clinic_id = $1 AND appointment_id = $2 AND status <> 'CANCELLED'
		LIMIT 1`, clinicID, appointmentID).Scan(&number)
	if db.IsNoRows(err) {
		return "", nil
	}
	return number, err
}

func (r *repoPG) PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND clinic_id = $2)`, patientID, clinicID).Scan(&ok)
	return ok, err
}

func (r *repoPG) AppointmentPatient(ctx context.Context, clinicID, appointmentID uuid.UUID) (uuid.UUID, error) {
	var patientID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT patient_id FROM appointments WHERE id = $1 AND clinic_id = $2`, appointmentID, clinicID).Scan(&patientID)
	if db.IsNoRows(err) {
		return uuid.Nil, apperr.NotFound("appointment")
	}
	return patientID, err
}
