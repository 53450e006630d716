package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int64{
		0:                       0,
		-time.Second:            0,
		time.Millisecond:        1,
		time.Second:             1,
		1200 * time.Millisecond: 2,
		59*time.Minute + 1:      3541,
	}
	for in, want := range cases {
		assert.Equal(t, want, RetryAfterSeconds(in), in.String())
	}
}

func TestDecisionAllowed(t *testing.T) {
	assert.True(t, Decision{Outcome: OutcomeAllowed}.Allowed())
	assert.False(t, Decision{Outcome: OutcomeQuotaExceeded}.Allowed())
}
