package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeUsageFile(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usage.yml"), []byte(body), 0o600))
}

func TestNewUsageConfigHolder_DefaultsWithoutFile(t *testing.T) {
	holder, err := NewUsageConfigHolder(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, int64(100), cfg.RateLimits.Hourly)
	assert.Equal(t, int64(500), cfg.RateLimits.Daily)
	assert.Equal(t, featuredomain.DefaultCatalog().Definitions(), cfg.Catalog().Definitions())
}

func TestNewUsageConfigHolder_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeUsageFile(t, dir, `
usage:
  features:
    ai_search:
      monthlyQuota: 50
    ai_analysis:
      cooldown: 90s
  rateLimits:
    hourly: 10
`)

	holder, err := NewUsageConfigHolder(dir, zap.NewNop())
	require.NoError(t, err)

	catalog := holder.Get().Catalog()
	search, ok := catalog.Lookup(featuredomain.AISearch)
	require.True(t, ok)
	assert.Equal(t, int64(50), search.MonthlyQuota)
	assert.Equal(t, int64(1), search.CreditCost)

	analysis, ok := catalog.Lookup(featuredomain.AIAnalysis)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, analysis.Cooldown)
	assert.Equal(t, int64(5), analysis.MonthlyQuota)

	assert.Equal(t, int64(10), catalog.Rates.Hourly)
	assert.Equal(t, int64(500), catalog.Rates.Daily)
}

func TestNewUsageConfigHolder_EnvOverride(t *testing.T) {
	t.Setenv("METERGUARD_USAGE_RATELIMITS_DAILY", "250")

	holder, err := NewUsageConfigHolder(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, int64(250), holder.Get().RateLimits.Daily)
}

func TestNewUsageConfigHolder_RejectsInvalidFile(t *testing.T) {
	cases := map[string]string{
		"zero credit cost": `
usage:
  features:
    ai_search:
      creditCost: 0
`,
		"unknown feature": `
usage:
  features:
    ai_translate:
      monthlyQuota: 5
      creditCost: 1
`,
		"negative hourly": `
usage:
  rateLimits:
    hourly: -1
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeUsageFile(t, dir, body)

			_, err := NewUsageConfigHolder(dir, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestValidateUsageConfig(t *testing.T) {
	require.NoError(t, ValidateUsageConfig(DefaultUsageConfig()))

	missing := DefaultUsageConfig()
	delete(missing.Features, featuredomain.AISynthesis.String())
	assert.ErrorContains(t, ValidateUsageConfig(missing), "ai_synthesis is missing")

	negative := DefaultUsageConfig()
	grant := negative.Features[featuredomain.AIGrantWriting.String()]
	grant.Cooldown = -time.Second
	negative.Features[featuredomain.AIGrantWriting.String()] = grant
	assert.Error(t, ValidateUsageConfig(negative))
}

func TestUsageConfigHolder_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeUsageFile(t, dir, `
usage:
  rateLimits:
    hourly: 10
`)

	holder, err := NewUsageConfigHolder(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, int64(10), holder.Get().RateLimits.Hourly)

	writeUsageFile(t, dir, `
usage:
  rateLimits:
    hourly: 20
`)

	assert.Eventually(t, func() bool {
		return holder.Get().RateLimits.Hourly == 20
	}, 5*time.Second, 20*time.Millisecond)
}
