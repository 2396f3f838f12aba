package scheduling

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusSeated, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusConfirmed, StatusScheduled, true},
		{StatusSeated, StatusInProgress, true},
		{StatusSeated, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusCompleted, StatusScheduled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, true},
		{StatusNoShow, StatusSeated, false},
		{StatusSeated, StatusSeated, true},
		{"BOGUS", "BOGUS", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusesAllValid(t *testing.T) {
	if len(Statuses) != 7 {
		t.Fatalf("expected 7 statuses, got %d", len(Statuses))
	}
	for _, s := range Statuses {
		if !ValidStatus(s) {
			t.Errorf("%s should be valid", s)
		}
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range []string{TypeCheckup, TypeTreatment, TypeEmergency, TypeFollowUp, TypeConsultation} {
		if !ValidType(typ) {
			t.Errorf("%s should be valid", typ)
		}
	}
	if ValidType("checkup") {
		t.Error("types are case sensitive")
	}
}
