package auth

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleDoctor     = "DOCTOR"
	RoleStaff      = "STAFF"
)

// Principal is the local user behind a request, resolved from its Identity.
type Principal struct {
	UserID   uuid.UUID
	ClinicID uuid.UUID
	Role     string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// ClinicIDFromContext returns uuid.Nil when no principal has been resolved.
func ClinicIDFromContext(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFromContext(ctx)
	return p.ClinicID
}
