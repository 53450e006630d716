package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/meterguard/internal/config"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"go.uber.org/zap"
)

const (
	keyHourly = "%s:{%s}:hourly"
	keyDaily  = "%s:{%s}:daily"
)

// RedisLimiter shares the windows between every instance pointed at the same Redis.
type RedisLimiter struct {
	window   *FixedWindow
	log      *zap.Logger
	prefix   string
	features featuredomain.Service
}

func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	}), nil
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, log *zap.Logger, features featuredomain.Service) *RedisLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "meterguard:rate"
	}
	return &RedisLimiter{
		window:   NewFixedWindow(client),
		log:      log.Named("ratelimit.redis"),
		prefix:   prefix,
		features: features,
	}
}

func (l *RedisLimiter) CheckAndConsume(ctx context.Context, userID string, now time.Time) (Result, error) {
	result, err := l.eval(ctx, userID, now, true)
	if err != nil {
		return Result{}, err
	}
	if !result.Allowed {
		l.log.Debug("rate limit reached",
			zap.String("user_id", userID),
			zap.String("scope", string(result.Scope)),
			zap.Duration("retry_after", result.RetryAfter),
		)
	}
	return result, nil
}

func (l *RedisLimiter) Usage(ctx context.Context, userID string, now time.Time) (Result, error) {
	return l.eval(ctx, userID, now, false)
}

func (l *RedisLimiter) eval(ctx context.Context, userID string, now time.Time, consume bool) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, ErrInvalidUser
	}
	rates := currentRates(l.features)

	state, err := l.window.run(
		ctx,
		fmt.Sprintf(keyHourly, l.prefix, userID),
		fmt.Sprintf(keyDaily, l.prefix, userID),
		rates.Hourly,
		rates.Daily,
		now,
		consume,
	)
	if err != nil {
		return Result{}, err
	}

	hourly := WindowUsage{Limit: rates.Hourly, Used: state.hourlyCount, ResetAt: state.hourlyResetAt}
	daily := WindowUsage{Limit: rates.Daily, Used: state.dailyCount, ResetAt: state.dailyResetAt}
	result := Result{Allowed: true, Hourly: hourly, Daily: daily}
	switch state.denied {
	case 1:
		result.Allowed = false
		result.Scope = ScopeHourly
		result.RetryAfter = retryAfter(hourly.ResetAt, now)
	case 2:
		result.Allowed = false
		result.Scope = ScopeDaily
		result.RetryAfter = retryAfter(daily.ResetAt, now)
	}
	return result, nil
}
