package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// DueBetween lists appointments of every clinic scheduled in [from, to)
	// whose status is not in excluded.
	DueBetween(ctx context.Context, from, to time.Time, excluded []string) ([]Due, error)
	Create(ctx context.Context, n *Notification) error
	MarkSent(ctx context.Context, id uuid.UUID, providerID string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	List(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*Notification, int, error)
}
