package clock

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}
	c.Advance(1500 * time.Millisecond)
	if got := Seconds(c); got != float64(start.Unix())+1.5 {
		t.Fatalf("unexpected seconds %f", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatal("expected Set to reset the clock")
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	t.Parallel()

	if loc := System().Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
	if OrSystem(nil) == nil {
		t.Fatal("expected fallback clock")
	}
}
