package clinic

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
)

// =========== Clinic Repository ===========

type clinicRepoPG struct{ pool *pgxpool.Pool }

func NewClinicRepoPG(pool *pgxpool.Pool) ClinicRepository { return &clinicRepoPG{pool: pool} }

func (r *clinicRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const clinicCols = `id, name, email, phone, address, created_at, updated_at`

func (r *clinicRepoPG) scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("clinic")
	}
	return &c, err
}

func (r *clinicRepoPG) Create(ctx context.Context, c *Clinic) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinics (id, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *clinicRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return r.scanClinic(r.conn(ctx).QueryRow(ctx, `SELECT `+clinicCols+` FROM clinics WHERE id = $1`, id))
}

func (r *clinicRepoPG) Update(ctx context.Context, c *Clinic) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE clinics SET name = $2, email = $3, phone = $4, address = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.Address,
	).Scan(&c.UpdatedAt)
}

func (r *clinicRepoPG) GetSettings(ctx context.Context, clinicID uuid.UUID) (*Settings, error) {
	var s Settings
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT clinic_id, timezone, currency, default_appointment_duration, invoice_prefix, updated_at
		FROM clinic_settings WHERE clinic_id = $1`, clinicID,
	).Scan(&s.ClinicID, &s.Timezone, &s.Currency, &s.DefaultAppointmentDuration, &s.InvoicePrefix, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("clinic settings")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *clinicRepoPG) UpsertSettings(ctx context.Context, s *Settings) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinic_settings (clinic_id, timezone, currency, default_appointment_duration, invoice_prefix)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (clinic_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			currency = EXCLUDED.currency,
			default_appointment_duration = EXCLUDED.default_appointment_duration,
			invoice_prefix = EXCLUDED.invoice_prefix,
			updated_at = NOW()
		RETURNING updated_at`,
		s.ClinicID, s.Timezone, s.Currency, s.DefaultAppointmentDuration, s.InvoicePrefix,
	).Scan(&s.UpdatedAt)
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, external_id, email, first_name, last_name, avatar_url, role, is_active, clinic_id, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &u.AvatarURL,
		&u.Role, &u.IsActive, &u.ClinicID, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("user")
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, external_id, email, first_name, last_name, avatar_url, role, is_active, clinic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.ExternalID, u.Email, u.FirstName, u.LastName, u.AvatarURL, u.Role, u.IsActive, u.ClinicID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *userRepoPG) GetByExternalID(ctx context.Context, externalID string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE external_id = $1`, externalID))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1) ORDER BY created_at LIMIT 1`, strings.TrimSpace(email)))
}

func (r *userRepoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID, role string, activeOnly bool) ([]*User, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE clinic_id = $1`
	args := []interface{}{clinicID}
	if role != "" {
		args = append(args, role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if activeOnly {
		query += " AND is_active"
	}
	query += " ORDER BY first_name, last_name"

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepoPG) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}
