package main

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"memberdesk/internal/adapters/http/middleware"
	"memberdesk/internal/application/forms"
)

// housekeepingSpec is the cron schedule for expiring idle forms and rate limit buckets.
const housekeepingSpec = "@every 1m"

// scheduleHousekeeping registers the periodic cleanup jobs on c. The caller starts and stops c.
func scheduleHousekeeping(c *cron.Cron, tracker *forms.Tracker, limiter *middleware.RateLimiter) error {
	if _, err := c.AddFunc(housekeepingSpec, func() {
		if n := tracker.Sweep(); n > 0 {
			slog.Debug("forms_swept", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule form sweep: %w", err)
	}
	if _, err := c.AddFunc(housekeepingSpec, func() {
		if n := limiter.Cleanup(); n > 0 {
			slog.Debug("rate_limit_visitors_forgotten", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule rate limit cleanup: %w", err)
	}
	return nil
}
