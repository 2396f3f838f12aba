package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is a half-open interval [Start, End) in a clinic's location.
type Bucket struct {
	Label string
	Start time.Time
	End   time.Time
}

func (b Bucket) contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	day := startOfDay(t, loc)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

// MonthBuckets returns n calendar months ending with the one containing now,
// oldest first, labelled "Jan 2006".
func MonthBuckets(now time.Time, loc *time.Location, n int) []Bucket {
	current := startOfMonth(now, loc)
	out := make([]Bucket, n)
	for i := 0; i < n; i++ {
		start := current.AddDate(0, -(n - 1 - i), 0)
		out[i] = Bucket{Label: start.Format("Jan 2006"), Start: start, End: start.AddDate(0, 1, 0)}
	}
	return out
}

// WeekBuckets returns n Monday-start weeks ending with the one containing
// now, oldest first, labelled with the Monday as "02 Jan".
func WeekBuckets(now time.Time, loc *time.Location, n int) []Bucket {
	current := startOfWeek(now, loc)
	out := make([]Bucket, n)
	for i := 0; i < n; i++ {
		start := current.AddDate(0, 0, -7*(n-1-i))
		out[i] = Bucket{Label: start.Format("02 Jan"), Start: start, End: start.AddDate(0, 0, 7)}
	}
	return out
}

// BucketsFor resolves a period name. An empty period means monthly.
func BucketsFor(period string, now time.Time, loc *time.Location) ([]Bucket, bool) {
	switch period {
	case "", PeriodMonthly:
		return MonthBuckets(now, loc, MonthlyBuckets), true
	case PeriodWeekly:
		return WeekBuckets(now, loc, WeeklyBuckets), true
	}
	return nil, false
}

func localDay(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func indexOf(buckets []Bucket, t time.Time) int {
	for i, b := range buckets {
		if b.contains(t) {
			return i
		}
	}
	return -1
}

// SumRevenue folds day totals into the buckets. Days outside every bucket
// are ignored and empty buckets stay zero.
func SumRevenue(buckets []Bucket, days []DayValue, loc *time.Location) []RevenuePoint {
	out := make([]RevenuePoint, len(buckets))
	for i, b := range buckets {
		out[i] = RevenuePoint{Label: b.Label, Value: decimal.Zero}
	}
	for _, d := range days {
		if i := indexOf(buckets, localDay(d.Day, loc)); i >= 0 {
			out[i].Value = out[i].Value.Add(d.Amount)
		}
	}
	return out
}

func SumCounts(buckets []Bucket, days []DayValue, loc *time.Location) []CountPoint {
	out := make([]CountPoint, len(buckets))
	for i, b := range buckets {
		out[i] = CountPoint{Label: b.Label}
	}
	for _, d := range days {
		if i := indexOf(buckets, localDay(d.Day, loc)); i >= 0 {
			out[i].Count += d.Count
		}
	}
	return out
}

var hundred = decimal.NewFromInt(100)

// RevenueChange is the month-over-month change in percent, one decimal
// place. A month following a zero month reports 100.
func RevenueChange(current, last decimal.Decimal) decimal.Decimal {
	if last.IsZero() {
		return hundred
	}
	return current.Sub(last).Div(last).Mul(hundred).Round(1)
}

// TruncateName keeps the first n runes of s.
func TruncateName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
