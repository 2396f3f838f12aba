package reporting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestMonthBuckets(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	buckets := MonthBuckets(now, time.UTC, 6)

	require.Len(t, buckets, 6)
	labels := make([]string, len(buckets))
	for i, b := range buckets {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{"Oct 2023", "Nov 2023", "Dec 2023", "Jan 2024", "Feb 2024", "Mar 2024"}, labels)
	assert.Equal(t, day(2023, 10, 1), buckets[0].Start)
	assert.Equal(t, day(2024, 4, 1), buckets[5].End)
	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, buckets[i-1].End, buckets[i].Start, "buckets must be contiguous")
	}
}

func TestMonthBuckets_LocalMonthBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 31 Mar 20:00 UTC is already 1 Apr in Kolkata.
	buckets := MonthBuckets(time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC), loc, 6)
	assert.Equal(t, "Apr 2024", buckets[5].Label)
}

func TestWeekBuckets(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC) // Wednesday
	buckets := WeekBuckets(now, time.UTC, 8)

	require.Len(t, buckets, 8)
	assert.Equal(t, "04 Mar", buckets[7].Label)
	assert.Equal(t, "15 Jan", buckets[0].Label)
	assert.Equal(t, time.Monday, buckets[0].Start.Weekday())
	assert.Equal(t, day(2024, 3, 11), buckets[7].End)
}

func TestWeekBuckets_Sunday(t *testing.T) {
	buckets := WeekBuckets(time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), time.UTC, 8)
	assert.Equal(t, "04 Mar", buckets[7].Label, "Sunday belongs to the week starting the previous Monday")
}

func TestBucketsFor(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	b, ok := BucketsFor("", now, time.UTC)
	assert.True(t, ok)
	assert.Len(t, b, MonthlyBuckets)

	b, ok = BucketsFor(PeriodWeekly, now, time.UTC)
	assert.True(t, ok)
	assert.Len(t, b, WeeklyBuckets)

	_, ok = BucketsFor("daily", now, time.UTC)
	assert.False(t, ok)
}

func TestSumRevenue_NoPaymentsIsZero(t *testing.T) {
	buckets := MonthBuckets(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), time.UTC, 6)
	points := SumRevenue(buckets, nil, time.UTC)

	require.Len(t, points, 6)
	for _, p := range points {
		assert.True(t, p.Value.IsZero(), "bucket %s should be zero", p.Label)
	}
}

func TestSumRevenue(t *testing.T) {
	buckets := MonthBuckets(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), time.UTC, 6)
	days := []DayValue{
		{Day: day(2024, 3, 1), Amount: dec("500")},
		{Day: day(2024, 3, 5), Amount: dec("250.50")},
		{Day: day(2024, 1, 31), Amount: dec("0.10")},
		{Day: day(2024, 1, 1), Amount: dec("0.20")},
		{Day: day(2023, 9, 30), Amount: dec("999")}, // outside the window
	}
	points := SumRevenue(buckets, days, time.UTC)

	assert.True(t, points[5].Value.Equal(dec("750.50")))
	assert.True(t, points[3].Value.Equal(dec("0.30")))
	assert.True(t, points[0].Value.IsZero())
}

func TestSumCounts(t *testing.T) {
	buckets := WeekBuckets(time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), time.UTC, 8)
	days := []DayValue{
		{Day: day(2024, 3, 4), Count: 2},
		{Day: day(2024, 3, 3), Count: 1},
		{Day: day(2024, 3, 6), Count: 3},
	}
	points := SumCounts(buckets, days, time.UTC)

	assert.Equal(t, 5, points[7].Count)
	assert.Equal(t, 1, points[6].Count)
	assert.Equal(t, 0, points[0].Count)
}

func TestRevenueChange(t *testing.T) {
	tests := []struct {
		current, last, want string
	}{
		{"0", "0", "100"},
		{"500", "0", "100"},
		{"1000", "800", "25"},
		{"1", "3", "-66.7"},
		{"0", "250", "-100"},
		{"1200", "1200", "0"},
	}
	for _, tt := range tests {
		got := RevenueChange(dec(tt.current), dec(tt.last))
		assert.True(t, got.Equal(dec(tt.want)), "%s vs %s: got %s want %s", tt.current, tt.last, got, tt.want)
	}
}

func TestTruncateName(t *testing.T) {
	assert.Equal(t, "Scaling", TruncateName("Scaling", 20))
	assert.Equal(t, "Root Canal Treatment", TruncateName("Root Canal Treatment - Molar (Tooth 36)", 20))
	assert.Equal(t, "Ästhetische Füllung ", TruncateName("Ästhetische Füllung Zahn", 20))
}
