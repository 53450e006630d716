package domain

import (
	"errors"
	"strings"
	"time"
)

// Code identifies a metered AI feature. The set is closed.
type Code string

const (
	AISearch       Code = "ai_search"
	AIAnalysis     Code = "ai_analysis"
	AIGrantWriting Code = "ai_grant_writing"
	AISynthesis    Code = "ai_synthesis"
)

// All lists every metered feature in a stable order.
var All = []Code{AISearch, AIAnalysis, AIGrantWriting, AISynthesis}

var ErrInvalidFeature = errors.New("invalid_feature")

// Parse validates a raw feature identifier against the closed set.
func Parse(raw string) (Code, error) {
	code := Code(strings.ToLower(strings.TrimSpace(raw)))
	switch code {
	case AISearch, AIAnalysis, AIGrantWriting, AISynthesis:
		return code, nil
	default:
		return "", ErrInvalidFeature
	}
}

func (c Code) String() string { return string(c) }

// Definition is the static configuration of one feature.
type Definition struct {
	Code         Code          `json:"code"`
	MonthlyQuota int64         `json:"monthly_quota"`
	CreditCost   int64         `json:"credit_cost"`
	Cooldown     time.Duration `json:"cooldown"`
}

// RateLimits are the global per-user ceilings shared across features.
type RateLimits struct {
	Hourly int64 `json:"hourly"`
	Daily  int64 `json:"daily"`
}

// Catalog is an immutable snapshot of feature definitions and rate ceilings.
type Catalog struct {
	definitions map[Code]Definition
	Rates       RateLimits
}

func NewCatalog(defs []Definition, rates RateLimits) Catalog {
	m := make(map[Code]Definition, len(defs))
	for _, def := range defs {
		m[def.Code] = def
	}
	return Catalog{definitions: m, Rates: rates}
}

// Lookup returns the definition for code.
func (c Catalog) Lookup(code Code) (Definition, bool) {
	def, ok := c.definitions[code]
	return def, ok
}

// Definitions returns every configured definition ordered like All.
func (c Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.definitions))
	for _, code := range All {
		if def, ok := c.definitions[code]; ok {
			out = append(out, def)
		}
	}
	return out
}

// DefaultCatalog is the built-in feature table.
func DefaultCatalog() Catalog {
	return NewCatalog([]Definition{
		{Code: AISearch, MonthlyQuota: 20, CreditCost: 1, Cooldown: 0},
		{Code: AIAnalysis, MonthlyQuota: 5, CreditCost: 3, Cooldown: 120 * time.Second},
		{Code: AIGrantWriting, MonthlyQuota: 3, CreditCost: 5, Cooldown: 300 * time.Second},
		{Code: AISynthesis, MonthlyQuota: 10, CreditCost: 2, Cooldown: 0},
	}, RateLimits{Hourly: 100, Daily: 500})
}
