package timeframe

import (
	"testing"
	"time"

	"github.com/ptrelli/wadrip/internal/campaign"
)

func TestWithin(t *testing.T) {
	// 2026-03-02 is a Monday
	at := func(hour, min int) time.Time {
		return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		now      time.Time
		schedule *campaign.Schedule
		want     bool
	}{
		{
			name:     "nil schedule is unrestricted",
			now:      at(3, 0),
			schedule: nil,
			want:     true,
		},
		{
			name:     "empty schedule is unrestricted",
			now:      at(3, 0),
			schedule: &campaign.Schedule{},
			want:     true,
		},
		{
			name:     "inside window",
			now:      at(12, 0),
			schedule: &campaign.Schedule{StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
			want:     true,
		},
		{
			name:     "outside window",
			now:      at(20, 0),
			schedule: &campaign.Schedule{StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
			want:     false,
		},
		{
			name:     "window bounds are inclusive at start",
			now:      at(9, 0),
			schedule: &campaign.Schedule{StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
			want:     true,
		},
		{
			name:     "window bounds are inclusive at end",
			now:      at(18, 0),
			schedule: &campaign.Schedule{StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
			want:     true,
		},
		{
			name:     "timezone shifts the local window",
			now:      at(8, 0), // 09:00 in Europe/Rome (CET, UTC+1)
			schedule: &campaign.Schedule{StartTime: "09:00", EndTime: "18:00", Timezone: "Europe/Rome"},
			want:     true,
		},
		{
			name:     "overnight window before midnight",
			now:      at(23, 0),
			schedule: &campaign.Schedule{StartTime: "22:00", EndTime: "04:00", Timezone: "UTC"},
			want:     true,
		},
		{
			name:     "overnight window after midnight",
			now:      at(3, 0),
			schedule: &campaign.Schedule{StartTime: "22:00", EndTime: "04:00", Timezone: "UTC"},
			want:     true,
		},
		{
			name:     "overnight window daytime gap",
			now:      at(12, 0),
			schedule: &campaign.Schedule{StartTime: "22:00", EndTime: "04:00", Timezone: "UTC"},
			want:     false,
		},
		{
			name: "allowed weekday",
			now:  at(12, 0),
			schedule: &campaign.Schedule{
				StartTime: "09:00", EndTime: "18:00", Timezone: "UTC",
				DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday},
			},
			want: true,
		},
		{
			name: "disallowed weekday",
			now:  at(12, 0),
			schedule: &campaign.Schedule{
				StartTime: "09:00", EndTime: "18:00", Timezone: "UTC",
				DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday},
			},
			want: false,
		},
		{
			name:     "days only, no time bounds",
			now:      at(12, 0),
			schedule: &campaign.Schedule{Timezone: "UTC", DaysOfWeek: []time.Weekday{time.Monday}},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Within(tt.now, tt.schedule)
			if got != tt.want {
				t.Errorf("Within(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
