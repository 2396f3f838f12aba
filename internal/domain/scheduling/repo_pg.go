package scheduling

import (
	"context"
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

const apptSelect = `
	SELECT a.id, a.clinic_id, a.patient_id, a.doctor_id, a.scheduled_at, a.duration, a.status, a.type,
		a.chief_complaint, a.notes, a.created_at, a.updated_at,
		p.first_name || ' ' || p.last_name, p.phone,
		TRIM(u.first_name || ' ' || u.last_name)
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = a.doctor_id`

func (r *repoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.ClinicID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Duration, &a.Status, &a.Type,
		&a.ChiefComplaint, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.PatientPhone, &a.DoctorName)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, clinic_id, patient_id, doctor_id, scheduled_at, duration, status, type,
			chief_complaint, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		a.ID, a.ClinicID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Duration, a.Status, a.Type,
		a.ChiefComplaint, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, apptSelect+` WHERE a.id = $1 AND a.clinic_id = $2`, id, clinicID))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET doctor_id = $3, scheduled_at = $4, duration = $5, type = $6,
			chief_complaint = $7, notes = $8, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		a.ID, a.ClinicID, a.DoctorID, a.ScheduledAt, a.Duration, a.Type, a.ChiefComplaint, a.Notes,
	).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("appointment")
	}
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $4, updated_at = NOW() WHERE id = $1 AND clinic_id = $2 AND status = $3`,
		id, clinicID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1 AND clinic_id = $2)`, id, clinicID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("appointment")
	}
	return apperr.Conflict("appointment status changed from %s by another request", from)
}

func (r *repoPG) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func (r *repoPG) ListBetween(ctx context.Context, clinicID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, apptSelect+`
		WHERE a.clinic_id = $1 AND a.scheduled_at >= $2 AND a.scheduled_at < $3
		ORDER BY a.scheduled_at, a.created_at`, clinicID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) PatientInClinic(ctx context.Context, clinicID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND clinic_id = $2)`, patientID, clinicID).Scan(&ok)
	return ok, err
}

func (r *repoPG) DoctorInClinic(ctx context.Context, clinicID, doctorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND clinic_id = $2 AND is_active)`, doctorID, clinicID).Scan(&ok)
	return ok, err
}
