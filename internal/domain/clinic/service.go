package clinic

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
	"github.com/dentaldesk/dentaldesk/internal/platform/metrics"
)

type Service struct {
	clinics ClinicRepository
	users   UserRepository
	tx      db.TxRunner
}

func NewService(clinics ClinicRepository, users UserRepository, tx db.TxRunner) *Service {
	return &Service{clinics: clinics, users: users, tx: tx}
}

// EnsureUser maps an authenticated identity to its local user, creating a
// clinic and an ADMIN user on first sign-in. Two concurrent first requests for
// the same identity both end up with the single row that won the insert.
func (s *Service) EnsureUser(ctx context.Context, id auth.Identity) (*User, error) {
	if id.ExternalID == "" {
		return nil, apperr.Validation("identity has no subject")
	}

	u, err := s.users.GetByExternalID(ctx, id.ExternalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	firstName := strings.TrimSpace(id.FirstName)
	clinicOwner := firstName
	if clinicOwner == "" {
		clinicOwner = "My"
	}
	if firstName == "" {
		firstName = "User"
	}

	var created *User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		c := &Clinic{Name: clinicOwner + "'s Clinic", Email: id.Email}
		if err := s.clinics.Create(ctx, c); err != nil {
			return fmt.Errorf("create clinic: %w", err)
		}
		if err := s.clinics.UpsertSettings(ctx, DefaultSettings(c.ID)); err != nil {
			return fmt.Errorf("create clinic settings: %w", err)
		}

		u := &User{
			ExternalID: id.ExternalID,
			Email:      id.Email,
			FirstName:  firstName,
			LastName:   strings.TrimSpace(id.LastName),
			Role:       auth.RoleAdmin,
			IsActive:   true,
			ClinicID:   c.ID,
		}
		if id.AvatarURL != "" {
			avatar := id.AvatarURL
			u.AvatarURL = &avatar
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return s.users.GetByExternalID(ctx, id.ExternalID)
		}
		return nil, fmt.Errorf("provision user: %w", err)
	}

	metrics.RecordClinicProvisioned()
	return created, nil
}

func (s *Service) GetUser(ctx context.Context, clinicID, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, clinicID, id)
}

func (s *Service) GetProfile(ctx context.Context, clinicID uuid.UUID) (*Profile, error) {
	c, err := s.clinics.GetByID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return &Profile{Clinic: c, Settings: settings}, nil
}

// GetSettings returns the stored settings or the defaults.
func (s *Service) GetSettings(ctx context.Context, clinicID uuid.UUID) (*Settings, error) {
	settings, err := s.clinics.GetSettings(ctx, clinicID)
	if errors.Is(err, apperr.ErrNotFound) {
		return DefaultSettings(clinicID), nil
	}
	return settings, err
}

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	prefixPattern   = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
)

func (s *Service) UpdateClinic(ctx context.Context, clinicID uuid.UUID, in ClinicUpdate) (*Profile, error) {
	c, err := s.clinics.GetByID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) < 2 || len(name) > 200 {
			return nil, apperr.Validation("clinic name must be between 2 and 200 characters")
		}
		c.Name = name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, apperr.Validation("invalid email address")
			}
		}
		c.Email = email
	}
	if in.Phone != nil {
		c.Phone = optional(*in.Phone)
	}
	if in.Address != nil {
		if len(*in.Address) > 500 {
			return nil, apperr.Validation("address must be at most 500 characters")
		}
		c.Address = optional(*in.Address)
	}

	if in.Timezone != nil {
		tz := strings.TrimSpace(*in.Timezone)
		if _, err := time.LoadLocation(tz); err != nil || tz == "" {
			return nil, apperr.Validation("unknown timezone: %s", tz)
		}
		settings.Timezone = tz
	}
	if in.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if !currencyPattern.MatchString(cur) {
			return nil, apperr.Validation("currency must be a 3-letter code")
		}
		settings.Currency = cur
	}
	if in.DefaultAppointmentDuration != nil {
		d := *in.DefaultAppointmentDuration
		if d < 15 || d > 240 {
			return nil, apperr.Validation("default appointment duration must be between 15 and 240 minutes")
		}
		settings.DefaultAppointmentDuration = d
	}
	if in.InvoicePrefix != nil {
		prefix := strings.ToUpper(strings.TrimSpace(*in.InvoicePrefix))
		if prefix == "" {
			prefix = DefaultInvoicePrefix
		}
		if !prefixPattern.MatchString(prefix) {
			return nil, apperr.Validation("invoice prefix must be 1 to 10 letters or digits")
		}
		settings.InvoicePrefix = prefix
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.clinics.Update(ctx, c); err != nil {
			return err
		}
		return s.clinics.UpsertSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}
	return &Profile{Clinic: c, Settings: settings}, nil
}

func (s *Service) ListDoctors(ctx context.Context, clinicID uuid.UUID) ([]*User, error) {
	return s.users.ListByClinic(ctx, clinicID, auth.RoleDoctor, true)
}

func (s *Service) ListUsers(ctx context.Context, clinicID uuid.UUID, role string) ([]*User, error) {
	if role != "" && !auth.ValidRole(role) {
		return nil, apperr.Validation("invalid role: %s", role)
	}
	return s.users.ListByClinic(ctx, clinicID, role, false)
}

// PromoteUser changes the role of the user with the given email. It backs the
// operator CLI and is not exposed over HTTP.
func (s *Service) PromoteUser(ctx context.Context, email, role string) (*User, error) {
	if role == "" {
		role = auth.RoleAdmin
	}
	if !auth.ValidRole(role) {
		return nil, apperr.Validation("invalid role %q: must be one of SUPERADMIN, ADMIN, DOCTOR, STAFF", role)
	}
	if strings.TrimSpace(email) == "" {
		return nil, apperr.Validation("email is required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRole(ctx, u.ID, role); err != nil {
		return nil, err
	}
	u.Role = role
	return u, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
