package api

import (
	"testing"

	"github.com/akorzh/Conveyor/internal/domain"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", defaultPageSize},
		{"25", 25},
		{"0", defaultPageSize},
		{"-5", defaultPageSize},
		{"99999999", maxPageSize},
		{"garbage", defaultPageSize},
	}

	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseOffset(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"10", 10},
		{"-1", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseOffset(tt.in); got != tt.want {
			t.Errorf("parseOffset(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestApplyScheduleUpdate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	intPtr := func(n int) *int { return &n }

	t.Run("cannot drop both cron and interval", func(t *testing.T) {
		schedule := &domain.Schedule{CronExpr: "0 3 * * *"}

		_, err := applyScheduleUpdate(schedule, &UpdateScheduleRequest{CronExpr: strPtr("")})
		if err == nil {
			t.Fatal("expected error when update leaves schedule without timing")
		}
	})

	t.Run("switch from cron to interval", func(t *testing.T) {
		schedule := &domain.Schedule{CronExpr: "0 3 * * *"}

		req := &UpdateScheduleRequest{CronExpr: strPtr(""), IntervalSec: intPtr(3600)}
		timingChanged, err := applyScheduleUpdate(schedule, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !timingChanged {
			t.Error("expected timing change")
		}
		if schedule.CronExpr != "" || schedule.IntervalSec != 3600 {
			t.Errorf("unexpected schedule state: cron=%q interval=%d", schedule.CronExpr, schedule.IntervalSec)
		}
	})

	t.Run("rename does not touch timing", func(t *testing.T) {
		schedule := &domain.Schedule{Name: "old", IntervalSec: 600}

		timingChanged, err := applyScheduleUpdate(schedule, &UpdateScheduleRequest{Name: strPtr("new")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if timingChanged {
			t.Error("rename must not trigger next due recalculation")
		}
		if schedule.Name != "new" {
			t.Errorf("expected name to be updated, got %q", schedule.Name)
		}
	})

	t.Run("invalid cron rejected", func(t *testing.T) {
		schedule := &domain.Schedule{IntervalSec: 600}

		_, err := applyScheduleUpdate(schedule, &UpdateScheduleRequest{CronExpr: strPtr("not a cron")})
		if err == nil {
			t.Fatal("expected cron validation error")
		}
	})
}
