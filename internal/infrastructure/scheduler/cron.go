package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"FeedDigest/internal/ports"
)

// DailyTrigger fires once per day at a fixed wall-clock time in a zone.
type DailyTrigger struct {
	spec     string
	schedule *cron.SpecSchedule
}

var _ ports.Trigger = (*DailyTrigger)(nil)

// NewDailyTrigger builds a trigger for hour:minute in loc.
func NewDailyTrigger(hour, minute int, loc *time.Location) (*DailyTrigger, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid trigger time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.UTC
	}

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	schedule, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("unexpected schedule type %T", parsed)
	}
	schedule.Location = loc

	return &DailyTrigger{spec: spec, schedule: schedule}, nil
}

// Next returns the first trigger instant strictly after the given time.
func (d *DailyTrigger) Next(after time.Time) time.Time {
	return d.schedule.Next(after)
}

// Spec is the five-field cron schedule, interpreted in Zone.
func (d *DailyTrigger) Spec() string {
	return d.spec
}

// Zone names the location the schedule is evaluated in.
func (d *DailyTrigger) Zone() string {
	return d.schedule.Location.String()
}
