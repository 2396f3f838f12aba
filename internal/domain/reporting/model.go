package reporting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PeriodMonthly = "monthly"
	PeriodWeekly  = "weekly"
)

const (
	MonthlyBuckets    = 6
	WeeklyBuckets     = 8
	TopServicesLimit  = 5
	ServiceNameLength = 20
	UpcomingLimit     = 5
	ActivityLimit     = 5
	activityPerSource = 3
)

// Stats is the dashboard headline.
type Stats struct {
	TotalPatients     int             `json:"total_patients"`
	AppointmentsToday int             `json:"appointments_today"`
	CompletedToday    int             `json:"completed_today"`
	RemainingToday    int             `json:"remaining_today"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	MonthRevenue      decimal.Decimal `json:"month_revenue"`
	LastMonthRevenue  decimal.Decimal `json:"last_month_revenue"`
	RevenueChange     decimal.Decimal `json:"revenue_change"`
	PendingInvoices   int             `json:"pending_invoices"`
}

type RevenuePoint struct {
	Label string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type CountPoint struct {
	Label string `json:"name"`
	Count int    `json:"count"`
}

type ServiceRevenue struct {
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int             `json:"count"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ComparisonPoint is one month's revenue against the same month a year
// earlier.
type ComparisonPoint struct {
	Month    string          `json:"month"`
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
}

type UpcomingAppointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	DoctorName  string    `json:"doctor_name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Duration    int       `json:"duration"`
	Status      string    `json:"status"`
	Type        string    `json:"type"`
}

const (
	ActionCompleted = "completed"
	ActionPayment   = "payment"
)

type Activity struct {
	ID      string    `json:"id"`
	Patient string    `json:"patient"`
	Action  string    `json:"action"`
	Detail  string    `json:"detail"`
	Time    time.Time `json:"time"`
}

// DayValue is an aggregate for one local calendar day. Day carries the date
// only; its location is meaningless.
type DayValue struct {
	Day    time.Time
	Amount decimal.Decimal
	Count  int
}
