package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, clinic_id, first_name, last_name, phone, email, date_of_birth, gender,
	address, allergies, medical_history, notes, last_visit_date, created_at, updated_at`

func (r *repoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.DateOfBirth, &p.Gender,
		&p.Address, &p.Allergies, &p.MedicalHistory, &p.Notes, &p.LastVisitDate, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient")
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return &p, err
}

func (r *repoPG) collect(rows pgx.Rows, err error) ([]*Patient, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, first_name, last_name, phone, email, date_of_birth, gender,
			address, allergies, medical_history, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, p.Email, p.DateOfBirth, p.Gender,
		p.Address, p.Allergies, p.MedicalHistory, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET first_name = $3, last_name = $4, phone = $5, email = $6, date_of_birth = $7,
			gender = $8, address = $9, allergies = $10, medical_history = $11, notes = $12, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, p.Email, p.DateOfBirth,
		p.Gender, p.Address, p.Allergies, p.MedicalHistory, p.Notes,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("patient")
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

// searchClause builds the WHERE fragment for a directory search. Arguments
// start at $2; $1 is the clinic id. A two-word query also matches the words
// as first/last name in either order.
func searchClause(query string) (string, []interface{}) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	like := "%" + escapeLike(query) + "%"
	clause := `(first_name ILIKE $2 OR last_name ILIKE $2 OR phone LIKE $3`
	args := []interface{}{like, "%" + escapeLike(NormalizePhone(query)) + "%"}

	if words := strings.Fields(query); len(words) == 2 {
		w1 := "%" + escapeLike(words[0]) + "%"
		w2 := "%" + escapeLike(words[1]) + "%"
		args = append(args, w1, w2)
		clause += ` OR (first_name ILIKE $4 AND last_name ILIKE $5) OR (first_name ILIKE $5 AND last_name ILIKE $4)`
	}
	return " AND " + clause + ")", args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *repoPG) Search(ctx context.Context, clinicID uuid.UUID, query string, limit int) ([]*Patient, error) {
	clause, args := searchClause(query)
	args = append([]interface{}{clinicID}, args...)
	args = append(args, limit)
	sql := fmt.Sprintf(`SELECT %s FROM patients WHERE clinic_id = $1%s ORDER BY created_at DESC LIMIT $%d`,
		patientCols, clause, len(args))
	return r.collect(r.conn(ctx).Query(ctx, sql, args...))
}

func (r *repoPG) ListCreatedBetween(ctx context.Context, clinicID uuid.UUID, from, to *time.Time) ([]*Patient, error) {
	return r.collect(r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE clinic_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY last_name, first_name`, clinicID, from, to))
}

func (r *repoPG) ExistingPhones(ctx context.Context, clinicID uuid.UUID, phones []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(phones) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT DISTINCT phone FROM patients WHERE clinic_id = $1 AND phone = ANY($2)`, clinicID, phones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = true
	}
	return out, rows.Err()
}

func (r *repoPG) TouchLastVisit(ctx context.Context, clinicID, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET last_visit_date = GREATEST(COALESCE(last_visit_date, $3), $3), updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2`, id, clinicID, at)
	return err
}

func (r *repoPG) RecentAppointments(ctx context.Context, clinicID, patientID uuid.UUID, limit int) ([]AppointmentSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.scheduled_at, a.duration, a.status, a.type,
			TRIM(u.first_name || ' ' || u.last_name),
			COALESCE(ARRAY(
				SELECT pr.name FROM clinical_records cr
				JOIN procedures pr ON pr.id = cr.procedure_id
				WHERE cr.appointment_id = a.id ORDER BY cr.created_at
			), '{}')
		FROM appointments a
		JOIN users u ON u.id = a.doctor_id
		WHERE a.clinic_id = $1 AND a.patient_id = $2
		ORDER BY a.scheduled_at DESC
		LIMIT $3`, clinicID, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AppointmentSummary{}
	for rows.Next() {
		var a AppointmentSummary
		if err := rows.Scan(&a.ID, &a.ScheduledAt, &a.Duration, &a.Status, &a.Type, &a.DoctorName, &a.Treatments); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) RecentInvoices(ctx context.Context, clinicID, patientID uuid.UUID, limit int) ([]InvoiceSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_number, total, amount_paid, status, created_at
		FROM invoices
		WHERE clinic_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, clinicID, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []InvoiceSummary{}
	for rows.Next() {
		var inv InvoiceSummary
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.Total, &inv.AmountPaid, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}
