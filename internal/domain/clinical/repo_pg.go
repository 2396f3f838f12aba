package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

// -- Procedure --

type procedureRepoPG struct{ pool *pgxpool.Pool }

func NewProcedureRepoPG(pool *pgxpool.Pool) ProcedureRepository { return &procedureRepoPG{pool: pool} }

func (r *procedureRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const procCols = `id, clinic_id, code, name, category, standard_cost, description, is_active, created_at, updated_at`

func (r *procedureRepoPG) scanProc(row pgx.Row) (*Procedure, error) {
	var p Procedure
	err := row.Scan(&p.ID, &p.ClinicID, &p.Code, &p.Name, &p.Category, &p.StandardCost, &p.Description,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("procedure")
	}
	return &p, err
}

func (r *procedureRepoPG) Create(ctx context.Context, p *Procedure) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO procedures (id, clinic_id, code, name, category, standard_cost, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.ClinicID, p.Code, p.Name, p.Category, p.StandardCost, p.Description, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("procedure code %q already exists", p.Code)
	}
	return err
}

func (r *procedureRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Procedure, error) {
	return r.scanProc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+procCols+` FROM procedures WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *procedureRepoPG) Update(ctx context.Context, p *Procedure) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE procedures SET code = $3, name = $4, category = $5, standard_cost = $6, description = $7,
			is_active = $8, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		p.ID, p.ClinicID, p.Code, p.Name, p.Category, p.StandardCost, p.Description, p.IsActive,
	).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("procedure")
	}
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("procedure code %q already exists", p.Code)
	}
	return err
}

func (r *procedureRepoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM procedures WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("procedure")
	}
	return nil
}

func (r *procedureRepoPG) List(ctx context.Context, clinicID uuid.UUID, category string, activeOnly bool) ([]*Procedure, error) {
	query := `SELECT ` + procCols + ` FROM procedures WHERE clinic_id = $1`
	args := []any{clinicID}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY category, name`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Procedure
	for rows.Next() {
		p, err := r.scanProc(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *procedureRepoPG) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clinical_records WHERE procedure_id = $1)`, id).Scan(&ok)
	return ok, err
}

// -- Record --

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordSelect = `
	SELECT r.id, r.clinic_id, r.appointment_id, r.procedure_id, r.tooth_number, r.cost_override, r.notes,
		r.created_at, p.code, p.name, p.standard_cost
	FROM clinical_records r
	JOIN procedures p ON p.id = r.procedure_id`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ClinicID, &rec.AppointmentID, &rec.ProcedureID, &rec.ToothNumber,
		&rec.CostOverride, &rec.Notes, &rec.CreatedAt, &rec.ProcedureCode, &rec.ProcedureName, &rec.StandardCost)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("clinical record")
	}
	return &rec, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_records (id, clinic_id, appointment_id, procedure_id, tooth_number, cost_override, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		rec.ID, rec.ClinicID, rec.AppointmentID, rec.ProcedureID, rec.ToothNumber, rec.CostOverride, rec.Notes,
	).Scan(&rec.CreatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, recordSelect+` WHERE r.id = $1 AND r.clinic_id = $2`, id, clinicID))
}

func (r *recordRepoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_records WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("clinical record")
	}
	return nil
}

func (r *recordRepoPG) ListByAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, recordSelect+`
		WHERE r.appointment_id = $1 AND r.clinic_id = $2
		ORDER BY r.created_at`, appointmentID, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) AppointmentPatient(ctx context.Context, clinicID, appointmentID uuid.UUID) (uuid.UUID, error) {
	var patientID uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT patient_id FROM appointments WHERE id = $1 AND clinic_id = $2`, appointmentID, clinicID).Scan(&patientID)
	if db.IsNoRows(err) {
		return uuid.Nil, apperr.NotFound("appointment")
	}
	return patientID, err
}
