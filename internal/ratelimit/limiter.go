package ratelimit

import (
	"context"
	"errors"
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
)

// Scope names the window that denied a request.
type Scope string

const (
	ScopeHourly Scope = "hourly"
	ScopeDaily  Scope = "daily"
)

var ErrInvalidUser = errors.New("invalid_user")

// Limiter enforces the global hourly and daily ceilings of one user.
type Limiter interface {
	// CheckAndConsume admits one request, counting it in both windows, or reports which window is full.
	CheckAndConsume(ctx context.Context, userID string, now time.Time) (Result, error)
	// Usage reports both windows as of now without consuming anything.
	Usage(ctx context.Context, userID string, now time.Time) (Result, error)
}

type WindowUsage struct {
	Limit   int64
	Used    int64
	ResetAt time.Time
}

func (w WindowUsage) Remaining() int64 {
	if w.Used >= w.Limit {
		return 0
	}
	return w.Limit - w.Used
}

type Result struct {
	Allowed    bool
	Scope      Scope
	RetryAfter time.Duration
	Hourly     WindowUsage
	Daily      WindowUsage
}

// decide applies the capacity check to windows that were already rolled over. Hourly is
// checked before daily.
func decide(hourly, daily WindowUsage, now time.Time) Result {
	result := Result{Allowed: true, Hourly: hourly, Daily: daily}
	switch {
	case hourly.Used >= hourly.Limit:
		result.Allowed = false
		result.Scope = ScopeHourly
		result.RetryAfter = retryAfter(hourly.ResetAt, now)
	case daily.Used >= daily.Limit:
		result.Allowed = false
		result.Scope = ScopeDaily
		result.RetryAfter = retryAfter(daily.ResetAt, now)
	}
	return result
}

func retryAfter(resetAt, now time.Time) time.Duration {
	if d := resetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type rateSource interface {
	Catalog() featuredomain.Catalog
}

func currentRates(features rateSource) featuredomain.RateLimits {
	if features == nil {
		return featuredomain.DefaultCatalog().Rates
	}
	return features.Catalog().Rates
}
