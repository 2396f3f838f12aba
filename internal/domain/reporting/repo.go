package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository runs the read-only aggregates behind the dashboard. Revenue is
// collected money: the sum of payments, not of invoice totals.
type Repository interface {
	CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error)
	// CountAppointments counts appointments scheduled in [from, to) and how
	// many of them are COMPLETED.
	CountAppointments(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (total, completed int, err error)
	TotalRevenue(ctx context.Context, clinicID uuid.UUID) (decimal.Decimal, error)
	RevenueBetween(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
	CountPendingInvoices(ctx context.Context, clinicID uuid.UUID) (int, error)

	// DailyRevenue and DailyNewPatients group [from, to) by calendar day in
	// the IANA zone tz.
	DailyRevenue(ctx context.Context, clinicID uuid.UUID, from, to time.Time, tz string) ([]DayValue, error)
	DailyNewPatients(ctx context.Context, clinicID uuid.UUID, from, to time.Time, tz string) ([]DayValue, error)

	TopServices(ctx context.Context, clinicID uuid.UUID, limit int) ([]ServiceRevenue, error)
	StatusCounts(ctx context.Context, clinicID uuid.UUID) (map[string]int, error)
	Upcoming(ctx context.Context, clinicID uuid.UUID, from time.Time, statuses []string, limit int) ([]UpcomingAppointment, error)
	RecentCompleted(ctx context.Context, clinicID uuid.UUID, limit int) ([]Activity, error)
	RecentPayments(ctx context.Context, clinicID uuid.UUID, limit int) ([]Activity, error)
}
