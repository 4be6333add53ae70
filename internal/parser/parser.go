// Package parser turns a job's 5-field cron expression and IANA time zone into a
// schedule the timer runner can drive.
package parser

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// minute hour day-of-month month day-of-week, no seconds and no descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// LoadLocation resolves an IANA zone name. An empty name means UTC.
func LoadLocation(timeZone string) (*time.Location, error) {
	if strings.TrimSpace(timeZone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown time zone %q", timeZone)
	}
	return loc, nil
}

// ParseSchedule parses expr and binds it to timeZone.
func ParseSchedule(expr, timeZone string) (cron.Schedule, error) {
	if strings.HasPrefix(strings.TrimSpace(expr), "CRON_TZ=") || strings.HasPrefix(strings.TrimSpace(expr), "TZ=") {
		return nil, errors.Newf("invalid cron expression %q: time zone must be set on the job, not in the expression", expr)
	}
	loc, err := LoadLocation(timeZone)
	if err != nil {
		return nil, err
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", expr)
	}
	spec, ok := sched.(*cron.SpecSchedule)
	if !ok {
		return nil, errors.Newf("invalid cron expression %q", expr)
	}
	spec.Location = loc
	return spec, nil
}

// Validate checks that expr and timeZone can be scheduled.
func Validate(expr, timeZone string) error {
	_, err := ParseSchedule(expr, timeZone)
	return err
}

// CalculateNextRun returns the first activation strictly after from.
func CalculateNextRun(expr, timeZone string, from time.Time) (time.Time, error) {
	sched, err := ParseSchedule(expr, timeZone)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
