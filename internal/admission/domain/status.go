package domain

import "time"

type UsageStatus struct {
	UserID        string                   `json:"user_id"`
	AccessType    string                   `json:"access_type"`
	Credits       CreditStatus             `json:"credits"`
	CurrentPeriod Period                   `json:"current_period"`
	Features      map[string]FeatureStatus `json:"features"`
	RateLimits    RateLimitStatus          `json:"rate_limits"`
}

type CreditStatus struct {
	Available         int64 `json:"available"`
	LifetimePurchased int64 `json:"lifetime_purchased"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FeatureStatus reports -1 for limit and remaining when the feature is unlimited.
type FeatureStatus struct {
	Limit     int64 `json:"limit"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
}

type RateLimitStatus struct {
	Hourly WindowStatus `json:"hourly"`
	Daily  WindowStatus `json:"daily"`
}

type WindowStatus struct {
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
