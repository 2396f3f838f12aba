package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE clinic_id = $1`, clinicID).Scan(&n)
	return n, err
}

func (r *repoPG) CountAppointments(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (int, int, error) {
	var total, completed int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'COMPLETED')
		FROM appointments
		WHERE clinic_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3`,
		clinicID, from, to).Scan(&total, &completed)
	return total, completed, err
}

func (r *repoPG) TotalRevenue(ctx context.Context, clinicID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE i.clinic_id = $1`, clinicID).Scan(&sum)
	return sum, err
}

func (r *repoPG) RevenueBetween(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE i.clinic_id = $1 AND p.paid_at >= $2 AND p.paid_at < $3`,
		clinicID, from, to).Scan(&sum)
	return sum, err
}

func (r *repoPG) CountPendingInvoices(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE clinic_id = $1 AND status IN ('PENDING', 'PARTIAL')`,
		clinicID).Scan(&n)
	return n, err
}

func (r *repoPG) DailyRevenue(ctx context.Context, clinicID uuid.UUID, from, to time.Time, tz string) ([]DayValue, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT (p.paid_at AT TIME ZONE $4)::date AS day, SUM(p.amount), COUNT(*)
		FROM payments p JOIN invoices i ON i.id = p.invoice_id
		WHERE i.clinic_id = $1 AND p.paid_at >= $2 AND p.paid_at < $3
		GROUP BY day ORDER BY day`,
		clinicID, from, to, tz)
	if err != nil {
		return nil, fmt.Errorf("daily revenue: %w", err)
	}
	return collectDays(rows)
}

func (r *repoPG) DailyNewPatients(ctx context.Context, clinicID uuid.UUID, from, to time.Time, tz string) ([]DayValue, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT (created_at AT TIME ZONE $4)::date AS day, 0::numeric, COUNT(*)
		FROM patients
		WHERE clinic_id = $1 AND created_at >= $2 AND created_at < $3
		GROUP BY day ORDER BY day`,
		clinicID, from, to, tz)
	if err != nil {
		return nil, fmt.Errorf("daily new patients: %w", err)
	}
	return collectDays(rows)
}

func collectDays(rows pgx.Rows) ([]DayValue, error) {
	defer rows.Close()
	var out []DayValue
	for rows.Next() {
		var d DayValue
		if err := rows.Scan(&d.Day, &d.Amount, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) TopServices(ctx context.Context, clinicID uuid.UUID, limit int) ([]ServiceRevenue, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT it.description, SUM(it.total) AS revenue, COUNT(*)
		FROM invoice_items it JOIN invoices i ON i.id = it.invoice_id
		WHERE i.clinic_id = $1 AND i.status <> 'CANCELLED'
		GROUP BY it.description
		ORDER BY revenue DESC, it.description
		LIMIT $2`, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("top services: %w", err)
	}
	defer rows.Close()
	var out []ServiceRevenue
	for rows.Next() {
		var s ServiceRevenue
		if err := rows.Scan(&s.Name, &s.Revenue, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) StatusCounts(ctx context.Context, clinicID uuid.UUID) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM appointments WHERE clinic_id = $1 GROUP BY status`, clinicID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *repoPG) Upcoming(ctx context.Context, clinicID uuid.UUID, from time.Time, statuses []string, limit int) ([]UpcomingAppointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.patient_id, p.first_name || ' ' || p.last_name, TRIM(u.first_name || ' ' || u.last_name),
			a.scheduled_at, a.duration, a.status, a.type
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = a.doctor_id
		WHERE a.clinic_id = $1 AND a.scheduled_at >= $2 AND a.status = ANY($3)
		ORDER BY a.scheduled_at
		LIMIT $4`, clinicID, from, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}
	defer rows.Close()
	var out []UpcomingAppointment
	for rows.Next() {
		var a UpcomingAppointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.DoctorName,
			&a.ScheduledAt, &a.Duration, &a.Status, &a.Type); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) RecentCompleted(ctx context.Context, clinicID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT 'apt-' || a.id::text, p.first_name || ' ' || p.last_name, a.type, a.updated_at
		FROM appointments a JOIN patients p ON p.id = a.patient_id
		WHERE a.clinic_id = $1 AND a.status = 'COMPLETED'
		ORDER BY a.updated_at DESC
		LIMIT $2`, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent completed: %w", err)
	}
	return collectActivity(rows, ActionCompleted)
}

func (r *repoPG) RecentPayments(ctx context.Context, clinicID uuid.UUID, limit int) ([]Activity, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT 'pay-' || pm.id::text, p.first_name || ' ' || p.last_name,
			'Payment received for ' || i.invoice_number, pm.paid_at
		FROM payments pm
		JOIN invoices i ON i.id = pm.invoice_id
		JOIN patients p ON p.id = i.patient_id
		WHERE i.clinic_id = $1
		ORDER BY pm.paid_at DESC
		LIMIT $2`, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	return collectActivity(rows, ActionPayment)
}

func collectActivity(rows pgx.Rows, action string) ([]Activity, error) {
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		a := Activity{Action: action}
		if err := rows.Scan(&a.ID, &a.Patient, &a.Detail, &a.Time); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
