package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DailyTime is the wall-clock minute a daily job fires at.
type DailyTime struct {
	Hour   int
	Minute int
}

func (d DailyTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Matches reports whether now, viewed in loc, falls on the trigger minute.
func (d DailyTime) Matches(now time.Time, loc *time.Location) bool {
	if loc != nil {
		now = now.In(loc)
	}
	return now.Hour() == d.Hour && now.Minute() == d.Minute
}

// ParseDailySchedule extracts the trigger time from a standard five-field
// cron expression. Only fixed daily schedules ("M H * * *") are accepted.
func ParseDailySchedule(expr string) (DailyTime, error) {
	expr = strings.TrimSpace(expr)
	if _, err := cron.ParseStandard(expr); err != nil {
		return DailyTime{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 || fields[2] != "*" || fields[3] != "*" || fields[4] != "*" {
		return DailyTime{}, fmt.Errorf("unsupported schedule %q: only daily schedules of the form \"M H * * *\" are supported", expr)
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil {
		return DailyTime{}, fmt.Errorf("unsupported schedule %q: minute must be a single number", expr)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil {
		return DailyTime{}, fmt.Errorf("unsupported schedule %q: hour must be a single number", expr)
	}
	return DailyTime{Hour: hour, Minute: minute}, nil
}

// LoadLocation resolves a timezone name; empty means the local zone.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return loc, nil
}
