package cooldown

import (
	"testing"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"github.com/stretchr/testify/assert"
)

func TestCheck_GrantWritingBoundary(t *testing.T) {
	last := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	record := usagerecorddomain.NewRecord("user-1", last)
	record.GrantWritingLastUsedAt = &last

	guard := NewGuard(Params{})

	tests := []struct {
		name      string
		elapsed   time.Duration
		allowed   bool
		retryWant time.Duration
	}{
		{name: "just used", elapsed: 0, retryWant: 300 * time.Second},
		{name: "299s", elapsed: 299 * time.Second, retryWant: time.Second},
		{name: "300s", elapsed: 300 * time.Second, allowed: true},
		{name: "long after", elapsed: time.Hour, allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := guard.Check(record, featuredomain.AIGrantWriting, last.Add(tt.elapsed))
			assert.Equal(t, tt.allowed, res.Allowed)
			assert.Equal(t, tt.retryWant, res.RetryAfter)
		})
	}
}

func TestCheck_NeverUsedAndZeroCooldown(t *testing.T) {
	now := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)
	record := usagerecorddomain.NewRecord("user-1", now)
	guard := NewGuard(Params{})

	assert.True(t, guard.Check(record, featuredomain.AIAnalysis, now).Allowed)

	record.SearchLastUsedAt = &now
	assert.True(t, guard.Check(record, featuredomain.AISearch, now).Allowed)

	record.AnalysisLastUsedAt = &now
	res := guard.Check(record, featuredomain.AIAnalysis, now.Add(time.Minute))
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Minute, res.RetryAfter)
}
