package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	code, err := Parse("  AI_Search ")
	require.NoError(t, err)
	assert.Equal(t, AISearch, code)

	for _, raw := range []string{"", "ai_translate", "search"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidFeature, raw)
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	defs := catalog.Definitions()
	require.Len(t, defs, len(All))
	for i, code := range All {
		assert.Equal(t, code, defs[i].Code)
	}

	grant, ok := catalog.Lookup(AIGrantWriting)
	require.True(t, ok)
	assert.Equal(t, int64(3), grant.MonthlyQuota)
	assert.Equal(t, int64(5), grant.CreditCost)
	assert.Equal(t, 300*time.Second, grant.Cooldown)

	assert.Equal(t, RateLimits{Hourly: 100, Daily: 500}, catalog.Rates)

	_, ok = catalog.Lookup(Code("ai_unknown"))
	assert.False(t, ok)
}
