package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) DueBetween(ctx context.Context, from, to time.Time, excluded []string) ([]Due, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.clinic_id, a.patient_id, p.first_name, COALESCE(p.phone, ''), u.last_name,
			a.scheduled_at, COALESCE(cs.timezone, '')
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.doctor_id
		LEFT JOIN clinic_settings cs ON cs.clinic_id = a.clinic_id
		WHERE a.scheduled_at >= $1 AND a.scheduled_at < $2 AND NOT (a.status = ANY($3))
		ORDER BY a.scheduled_at`, from, to, excluded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.AppointmentID, &d.ClinicID, &d.PatientID, &d.PatientFirstName, &d.Phone,
			&d.DoctorLastName, &d.ScheduledAt, &d.Timezone); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, clinic_id, patient_id, appointment_id, type, status, recipient, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		n.ID, n.ClinicID, n.PatientID, n.AppointmentID, n.Type, n.Status, n.Recipient, n.Message,
	).Scan(&n.CreatedAt)
}

func (r *repoPG) MarkSent(ctx context.Context, id uuid.UUID, providerID string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET status = 'SENT', provider_id = $2, sent_at = $3, error = NULL WHERE id = $1`,
		id, providerID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (r *repoPG) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET status = 'FAILED', error = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE clinic_id = $1`, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, clinic_id, patient_id, appointment_id, type, status, recipient, message,
			provider_id, error, created_at, sent_at
		FROM notifications
		WHERE clinic_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ClinicID, &n.PatientID, &n.AppointmentID, &n.Type, &n.Status,
			&n.Recipient, &n.Message, &n.ProviderID, &n.Error, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, rows.Err()
}
