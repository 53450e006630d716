package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollPeriod(t *testing.T) {
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	record := NewRecord("user-1", start)
	record.SearchCount = 20
	record.SynthesisCount = 4

	tests := []struct {
		name      string
		now       time.Time
		rolled    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "inside window",
			now:       start.Add(24 * time.Hour),
			wantStart: start,
			wantEnd:   start.AddDate(0, 1, 0),
		},
		{
			name:      "exactly at period end",
			now:       start.AddDate(0, 1, 0),
			rolled:    true,
			wantStart: start.AddDate(0, 1, 0),
			wantEnd:   start.AddDate(0, 2, 0),
		},
		{
			name:      "several months idle",
			now:       start.AddDate(0, 4, 2),
			rolled:    true,
			wantStart: start.AddDate(0, 4, 0),
			wantEnd:   start.AddDate(0, 5, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rolled := record.RollPeriod(tt.now)
			assert.Equal(t, tt.rolled, rolled)
			assert.True(t, got.PeriodStart.Equal(tt.wantStart), "start %s", got.PeriodStart)
			assert.True(t, got.PeriodEnd.Equal(tt.wantEnd), "end %s", got.PeriodEnd)
			assert.False(t, tt.now.Before(got.PeriodStart))
			assert.True(t, tt.now.Before(got.PeriodEnd))
			if rolled {
				assert.Zero(t, got.SearchCount)
				assert.Zero(t, got.SynthesisCount)
			} else {
				assert.Equal(t, int64(20), got.SearchCount)
			}

			again, rolledAgain := got.RollPeriod(tt.now)
			assert.False(t, rolledAgain)
			assert.Equal(t, got, again)
		})
	}
}

func TestRollRateWindows(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	record := NewRecord("user-1", now)
	record.HourlyCount = 100
	record.DailyCount = 300

	same, rolled := record.RollRateWindows(now.Add(59 * time.Minute))
	assert.False(t, rolled)
	assert.Equal(t, int64(100), same.HourlyCount)

	later := now.Add(time.Hour)
	hourly, rolled := record.RollRateWindows(later)
	assert.True(t, rolled)
	assert.Zero(t, hourly.HourlyCount)
	assert.True(t, hourly.HourlyResetAt.Equal(later.Add(HourlyWindow)))
	assert.Equal(t, int64(300), hourly.DailyCount)

	nextDay := now.Add(25 * time.Hour)
	both, rolled := record.RollRateWindows(nextDay)
	assert.True(t, rolled)
	assert.Zero(t, both.HourlyCount)
	assert.Zero(t, both.DailyCount)
	assert.True(t, both.DailyResetAt.Equal(nextDay.Add(DailyWindow)))
}
