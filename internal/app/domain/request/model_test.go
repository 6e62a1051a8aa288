package request

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusFulfilled, true},
		{StatusPending, StatusCancelled, true},
		{StatusFulfilled, StatusPending, false},
		{StatusFulfilled, StatusCancelled, false},
		{StatusCancelled, StatusFulfilled, false},
		{Status("bogus"), StatusFulfilled, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestUrgencyValid(t *testing.T) {
	for _, u := range []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh} {
		if !u.Valid() {
			t.Errorf("%s: expected valid", u)
		}
	}
	if Urgency("critical").Valid() {
		t.Errorf("critical: expected invalid")
	}
}
