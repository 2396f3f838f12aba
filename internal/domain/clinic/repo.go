package clinic

import (
	"context"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	// GetSettings returns apperr.ErrNotFound when the clinic has no stored settings.
	GetSettings(ctx context.Context, clinicID uuid.UUID) (*Settings, error)
	UpsertSettings(ctx context.Context, s *Settings) error
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*User, error)
	GetByExternalID(ctx context.Context, externalID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ListByClinic orders by first name. An empty role lists every role.
	ListByClinic(ctx context.Context, clinicID uuid.UUID, role string, activeOnly bool) ([]*User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
}
