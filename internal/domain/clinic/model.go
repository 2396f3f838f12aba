package clinic

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimezone            = "Asia/Kolkata"
	DefaultCurrency            = "INR"
	DefaultAppointmentDuration = 30
	DefaultInvoicePrefix       = "INV"
)

type Clinic struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Settings are per-clinic preferences. A clinic without a stored row uses
// DefaultSettings.
type Settings struct {
	ClinicID                   uuid.UUID `json:"clinic_id"`
	Timezone                   string    `json:"timezone"`
	Currency                   string    `json:"currency"`
	DefaultAppointmentDuration int       `json:"default_appointment_duration"`
	InvoicePrefix              string    `json:"invoice_prefix"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

func DefaultSettings(clinicID uuid.UUID) *Settings {
	return &Settings{
		ClinicID:                   clinicID,
		Timezone:                   DefaultTimezone,
		Currency:                   DefaultCurrency,
		DefaultAppointmentDuration: DefaultAppointmentDuration,
		InvoicePrefix:              DefaultInvoicePrefix,
	}
}

// Location resolves the clinic timezone, falling back to fallback.
func (s *Settings) Location(fallback *time.Location) *time.Location {
	if s == nil || s.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"-"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	ClinicID   uuid.UUID `json:"clinic_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ClinicUpdate carries a partial update; nil fields are left unchanged.
type ClinicUpdate struct {
	Name                       *string `json:"name"`
	Email                      *string `json:"email"`
	Phone                      *string `json:"phone"`
	Address                    *string `json:"address"`
	Timezone                   *string `json:"timezone"`
	Currency                   *string `json:"currency"`
	DefaultAppointmentDuration *int    `json:"default_appointment_duration"`
	InvoicePrefix              *string `json:"invoice_prefix"`
}

// Profile is a clinic together with its effective settings.
type Profile struct {
	Clinic   *Clinic   `json:"clinic"`
	Settings *Settings `json:"settings"`
}
