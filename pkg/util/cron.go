package util

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Purge schedules are registered with asynq's scheduler, which parses them
// with cron.ParseStandard. Use the same parser so descriptors such as
// "@daily" or "@every 6h" pass validation too.
func parseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty cron expression")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NextCronTime is the first run of expr strictly after from, in UTC.
func NextCronTime(expr string, from time.Time) (time.Time, error) {
	sched, err := parseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from.UTC()).UTC(), nil
}

func ValidateCronExpr(expr string) error {
	_, err := parseSchedule(expr)
	return err
}
