package main

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"memberdesk/internal/adapters/http/middleware"
	"memberdesk/internal/application/forms"
)

func TestScheduleHousekeeping(t *testing.T) {
	c := cron.New()
	tracker := forms.NewTracker(forms.DefaultTTL)
	tracker.OpenAdd("slot-a")
	limiter := middleware.NewRateLimiter(5, time.Second)

	if err := scheduleHousekeeping(c, tracker, limiter); err != nil {
		t.Fatalf("scheduleHousekeeping: %v", err)
	}
	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	// Fresh forms survive a sweep.
	for _, e := range entries {
		e.Job.Run()
	}
	if tracker.Len() != 1 {
		t.Errorf("tracker.Len = %d, want 1", tracker.Len())
	}
}
