package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dentaldesk/dentaldesk/internal/domain/clinic"
	"github.com/dentaldesk/dentaldesk/internal/domain/scheduling"
	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

type SettingsSource interface {
	GetSettings(ctx context.Context, clinicID uuid.UUID) (*clinic.Settings, error)
}

// upcomingStatuses are the states of an appointment the patient is still
// expected to attend.
var upcomingStatuses = []string{scheduling.StatusScheduled, scheduling.StatusConfirmed, scheduling.StatusSeated}

// Service computes dashboard figures at request time.
type Service struct {
	repo     Repository
	settings SettingsSource
	fallback *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, settings SettingsSource, fallback *time.Location, logger zerolog.Logger) *Service {
	if fallback == nil {
		fallback = time.UTC
	}
	return &Service{repo: repo, settings: settings, fallback: fallback, logger: logger, now: time.Now}
}

func (s *Service) location(ctx context.Context, clinicID uuid.UUID) (*time.Location, error) {
	if s.settings == nil {
		return s.fallback, nil
	}
	st, err := s.settings.GetSettings(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic settings: %w", err)
	}
	return st.Location(s.fallback), nil
}

// DashboardStats runs the headline queries concurrently.
func (s *Service) DashboardStats(ctx context.Context, clinicID uuid.UUID) (*Stats, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := startOfDay(now, loc)
	month := startOfMonth(now, loc)
	lastMonth := month.AddDate(0, -1, 0)

	var st Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalPatients, err = s.repo.CountPatients(gctx, clinicID)
		return err
	})
	g.Go(func() (err error) {
		st.AppointmentsToday, st.CompletedToday, err = s.repo.CountAppointments(gctx, clinicID, today, today.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() (err error) {
		st.TotalRevenue, err = s.repo.TotalRevenue(gctx, clinicID)
		return err
	})
	g.Go(func() (err error) {
		st.MonthRevenue, err = s.repo.RevenueBetween(gctx, clinicID, month, month.AddDate(0, 1, 0))
		return err
	})
	g.Go(func() (err error) {
		st.LastMonthRevenue, err = s.repo.RevenueBetween(gctx, clinicID, lastMonth, month)
		return err
	})
	g.Go(func() (err error) {
		st.PendingInvoices, err = s.repo.CountPendingInvoices(gctx, clinicID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	st.RemainingToday = st.AppointmentsToday - st.CompletedToday
	st.RevenueChange = RevenueChange(st.MonthRevenue, st.LastMonthRevenue)
	return &st, nil
}

func (s *Service) buckets(ctx context.Context, clinicID uuid.UUID, period string) ([]Bucket, *time.Location, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, nil, err
	}
	buckets, ok := BucketsFor(period, s.now(), loc)
	if !ok {
		return nil, nil, apperr.Validation("period must be weekly or monthly")
	}
	return buckets, loc, nil
}

// RevenueSeries sums payments per month (6) or per week (8).
func (s *Service) RevenueSeries(ctx context.Context, clinicID uuid.UUID, period string) ([]RevenuePoint, error) {
	buckets, loc, err := s.buckets(ctx, clinicID, period)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.DailyRevenue(ctx, clinicID, buckets[0].Start, buckets[len(buckets)-1].End, loc.String())
	if err != nil {
		return nil, err
	}
	return SumRevenue(buckets, days, loc), nil
}

// PatientGrowth counts new patients per month (6) or per week (8).
func (s *Service) PatientGrowth(ctx context.Context, clinicID uuid.UUID, period string) ([]CountPoint, error) {
	buckets, loc, err := s.buckets(ctx, clinicID, period)
	if err != nil {
		return nil, err
	}
	days, err := s.repo.DailyNewPatients(ctx, clinicID, buckets[0].Start, buckets[len(buckets)-1].End, loc.String())
	if err != nil {
		return nil, err
	}
	return SumCounts(buckets, days, loc), nil
}

// TopServices ranks invoice item descriptions by billed revenue.
func (s *Service) TopServices(ctx context.Context, clinicID uuid.UUID) ([]ServiceRevenue, error) {
	items, err := s.repo.TopServices(ctx, clinicID, TopServicesLimit)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceRevenue, len(items))
	for i, it := range items {
		it.Name = TruncateName(it.Name, ServiceNameLength)
		out[i] = it
	}
	return out, nil
}

// StatusDistribution reports every appointment status, zero when unused.
func (s *Service) StatusDistribution(ctx context.Context, clinicID uuid.UUID) ([]StatusCount, error) {
	counts, err := s.repo.StatusCounts(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	out := make([]StatusCount, len(scheduling.Statuses))
	for i, status := range scheduling.Statuses {
		out[i] = StatusCount{Status: status, Count: counts[status]}
	}
	return out, nil
}

// MonthlyComparison sets the last six months against the same months one
// year earlier.
func (s *Service) MonthlyComparison(ctx context.Context, clinicID uuid.UUID) ([]ComparisonPoint, error) {
	loc, err := s.location(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	current := MonthBuckets(s.now(), loc, MonthlyBuckets)
	previous := MonthBuckets(current[len(current)-1].Start.AddDate(-1, 0, 0), loc, MonthlyBuckets)

	days, err := s.repo.DailyRevenue(ctx, clinicID, previous[0].Start, current[len(current)-1].End, loc.String())
	if err != nil {
		return nil, err
	}
	cur := SumRevenue(current, days, loc)
	prev := SumRevenue(previous, days, loc)

	out := make([]ComparisonPoint, len(current))
	for i := range current {
		out[i] = ComparisonPoint{Month: current[i].Start.Format("Jan"), Current: cur[i].Value, Previous: prev[i].Value}
	}
	return out, nil
}

func (s *Service) UpcomingAppointments(ctx context.Context, clinicID uuid.UUID) ([]UpcomingAppointment, error) {
	items, err := s.repo.Upcoming(ctx, clinicID, s.now(), upcomingStatuses, UpcomingLimit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []UpcomingAppointment{}
	}
	return items, nil
}

// RecentActivity merges the latest completed visits and payments, newest
// first.
func (s *Service) RecentActivity(ctx context.Context, clinicID uuid.UUID) ([]Activity, error) {
	var completed, payments []Activity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		completed, err = s.repo.RecentCompleted(gctx, clinicID, activityPerSource)
		return err
	})
	g.Go(func() (err error) {
		payments, err = s.repo.RecentPayments(gctx, clinicID, activityPerSource)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}

	out := make([]Activity, 0, len(completed)+len(payments))
	out = append(out, completed...)
	out = append(out, payments...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if len(out) > ActivityLimit {
		out = out[:ActivityLimit]
	}
	return out, nil
}
