package pipeline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonathan/job-radar/internal/config"
)

// scheduleFor returns the schedule a config describes: a cron expression
// when set, otherwise a constant delay of interval_hours.
func scheduleFor(s config.ScheduleConfig) (cron.Schedule, error) {
	if s.Cron != "" {
		sched, err := cron.ParseStandard(s.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
		return sched, nil
	}
	if s.IntervalHours <= 0 {
		return nil, fmt.Errorf("interval must be positive (got %d hours)", s.IntervalHours)
	}
	return cron.Every(s.Interval()), nil
}

// nextAfter is the fixed-delay rule: the next cycle is measured from the end
// of the previous one, never from when it started.
func nextAfter(sched cron.Schedule, cycleEnd time.Time) time.Time {
	return sched.Next(cycleEnd)
}
