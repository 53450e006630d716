package ratelimit

import (
	"context"

	"github.com/smallbiznis/meterguard/internal/config"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Repo      usagerecorddomain.Repository
	Features  featuredomain.Service
}

// NewLimiter builds the backend selected by RATE_LIMIT_BACKEND.
func NewLimiter(p Params) (Limiter, error) {
	if p.Config.RateLimit.Backend != config.RateLimitBackendRedis {
		return NewStoreLimiter(p.DB, p.Log, p.Repo, p.Features), nil
	}

	client, err := NewRedisClient(p.Config)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	p.Log.Info("rate limit backend", zap.String("backend", config.RateLimitBackendRedis))
	return NewRedisLimiter(client, p.Config.RateLimit.KeyPrefix, p.Log, p.Features), nil
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)
