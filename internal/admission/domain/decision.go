package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Outcome is the terminal state of one admission.
type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeInvalidFeature  Outcome = "invalid_feature"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeCooldownActive  Outcome = "cooldown_active"
	OutcomeQuotaExceeded   Outcome = "quota_exceeded"
	OutcomeSystemFailure   Outcome = "system_failure"
)

// Source labels how an allowed call was paid for.
const (
	SourceGrandfathered = "grandfathered"
	SourceInstitutional = "institutional"
	SourceFree          = "free"
	SourceCredits       = "credits"
)

// Reasons attached to denials.
const (
	ReasonNoCredits              = "no_credits"
	ReasonInstitutionalExhausted = "institutional_limit_reached"
	ReasonMissingUser            = "missing_user"
	ReasonUnknownFeature         = "unknown_feature"
	ReasonStorageFailure         = "storage_failure"
	ReasonCooldown               = "cooldown"
	ReasonRateLimit              = "rate_limit"
)

// Decision is the single result of Admit. Fields that do not apply to the outcome stay zero.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Feature string  `json:"feature,omitempty"`
	Source  string  `json:"source,omitempty"`
	Reason  string  `json:"reason,omitempty"`

	Free           bool  `json:"free"`
	CreditsCharged int64 `json:"credits_charged"`
	Balance        int64 `json:"balance"`

	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	Scope             string `json:"scope,omitempty"`

	Limit            int64 `json:"limit"`
	Used             int64 `json:"used"`
	CreditsNeeded    int64 `json:"credits_needed"`
	CreditsAvailable int64 `json:"credits_available"`

	AuditLogID snowflake.ID `json:"audit_log_id,omitempty"`
}

func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// RetryAfterSeconds rounds a wait up to whole seconds.
func RetryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	seconds := int64(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds
}
