package service

import (
	"testing"

	"github.com/smallbiznis/meterguard/internal/config"
	"github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinition_FollowsHolder(t *testing.T) {
	cfg := config.DefaultUsageConfig()
	search := cfg.Features[domain.AISearch.String()]
	search.MonthlyQuota = 42
	cfg.Features[domain.AISearch.String()] = search

	svc := New(Params{Holder: config.NewStaticUsageConfigHolder(cfg)})

	def, err := svc.Definition(domain.AISearch)
	require.NoError(t, err)
	assert.Equal(t, int64(42), def.MonthlyQuota)
	assert.Equal(t, int64(1), def.CreditCost)

	_, err = svc.Definition(domain.Code("ai_unknown"))
	assert.ErrorIs(t, err, domain.ErrInvalidFeature)
}

func TestCatalog_DefaultsWithoutHolder(t *testing.T) {
	svc := New(Params{})

	catalog := svc.Catalog()
	assert.Equal(t, domain.DefaultCatalog().Definitions(), catalog.Definitions())
	assert.Equal(t, int64(100), catalog.Rates.Hourly)
}
