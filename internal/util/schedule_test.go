package util

import (
	"testing"
	"time"
)

func TestParseDailySchedule(t *testing.T) {
	d, err := ParseDailySchedule("0 3 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Hour != 3 || d.Minute != 0 || d.String() != "03:00" {
		t.Fatalf("unexpected schedule: %+v", d)
	}

	d, err = ParseDailySchedule(" 45 23 * * * ")
	if err != nil || d.Hour != 23 || d.Minute != 45 {
		t.Fatalf("unexpected result: %+v %v", d, err)
	}
}

func TestParseDailyScheduleRejects(t *testing.T) {
	for _, expr := range []string{"", "garbage", "0 3 * * 1", "*/5 * * * *", "0 3,15 * * *", "61 3 * * *", "@daily"} {
		if _, err := ParseDailySchedule(expr); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}

func TestDailyTimeMatches(t *testing.T) {
	d := DailyTime{Hour: 3, Minute: 0}
	if !d.Matches(time.Date(2024, 1, 1, 3, 0, 59, 0, time.UTC), time.UTC) {
		t.Fatalf("expected match")
	}
	if d.Matches(time.Date(2024, 1, 1, 3, 1, 0, 0, time.UTC), time.UTC) {
		t.Fatalf("expected no match")
	}

	berlin, err := LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 02:00 UTC is 03:00 in Berlin during winter.
	if !d.Matches(time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC), berlin) {
		t.Fatalf("expected match in Berlin")
	}
}
