package cooldown

import (
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/fx"
)

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Guard enforces the minimum interval between two admitted calls of the same feature.
type Guard struct {
	features featuredomain.Service
}

type Params struct {
	fx.In

	Features featuredomain.Service
}

func NewGuard(p Params) *Guard {
	return &Guard{features: p.Features}
}

// Check never mutates the record.
func (g *Guard) Check(record usagerecorddomain.UsageRecord, feature featuredomain.Code, now time.Time) Result {
	var cooldown time.Duration
	if g != nil && g.features != nil {
		if def, err := g.features.Definition(feature); err == nil {
			cooldown = def.Cooldown
		}
	} else if def, ok := featuredomain.DefaultCatalog().Lookup(feature); ok {
		cooldown = def.Cooldown
	}
	return Evaluate(record.LastUsedAt(feature), cooldown, now)
}

// Evaluate allows the call once at least cooldown has elapsed since lastUsedAt.
func Evaluate(lastUsedAt *time.Time, cooldown time.Duration, now time.Time) Result {
	if lastUsedAt == nil || cooldown <= 0 {
		return Result{Allowed: true}
	}
	elapsed := now.Sub(*lastUsedAt)
	if elapsed >= cooldown {
		return Result{Allowed: true}
	}
	return Result{RetryAfter: cooldown - elapsed}
}
