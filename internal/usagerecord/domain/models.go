package domain

import (
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
)

const (
	HourlyWindow = time.Hour
	DailyWindow  = 24 * time.Hour
)

// UsageRecord holds every counter and balance the engine keeps for one user.
type UsageRecord struct {
	UserID string `gorm:"primaryKey;type:text"`

	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`

	SearchCount       int64 `gorm:"not null;default:0"`
	AnalysisCount     int64 `gorm:"not null;default:0"`
	GrantWritingCount int64 `gorm:"not null;default:0"`
	SynthesisCount    int64 `gorm:"not null;default:0"`

	SearchLastUsedAt       *time.Time
	AnalysisLastUsedAt     *time.Time
	GrantWritingLastUsedAt *time.Time
	SynthesisLastUsedAt    *time.Time

	HourlyCount   int64     `gorm:"not null;default:0"`
	HourlyResetAt time.Time `gorm:"not null"`
	DailyCount    int64     `gorm:"not null;default:0"`
	DailyResetAt  time.Time `gorm:"not null"`

	AvailableCredits         int64 `gorm:"not null;default:0"`
	LifetimeCreditsPurchased int64 `gorm:"not null;default:0"`

	IsGrandfathered bool    `gorm:"not null;default:false"`
	PartnershipID   *string `gorm:"type:text;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// NewRecord returns the zeroed record created on a user's first metered call.
func NewRecord(userID string, now time.Time) UsageRecord {
	now = now.UTC()
	return UsageRecord{
		UserID:        userID,
		PeriodStart:   now,
		PeriodEnd:     now.AddDate(0, 1, 0),
		HourlyResetAt: now.Add(HourlyWindow),
		DailyResetAt:  now.Add(DailyWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MonthlyCount returns the usage of feature in the current period.
func (r UsageRecord) MonthlyCount(feature featuredomain.Code) int64 {
	switch feature {
	case featuredomain.AISearch:
		return r.SearchCount
	case featuredomain.AIAnalysis:
		return r.AnalysisCount
	case featuredomain.AIGrantWriting:
		return r.GrantWritingCount
	case featuredomain.AISynthesis:
		return r.SynthesisCount
	default:
		return 0
	}
}

// LastUsedAt returns when feature was last admitted, nil if never.
func (r UsageRecord) LastUsedAt(feature featuredomain.Code) *time.Time {
	switch feature {
	case featuredomain.AISearch:
		return r.SearchLastUsedAt
	case featuredomain.AIAnalysis:
		return r.AnalysisLastUsedAt
	case featuredomain.AIGrantWriting:
		return r.GrantWritingLastUsedAt
	case featuredomain.AISynthesis:
		return r.SynthesisLastUsedAt
	default:
		return nil
	}
}

// HasPartnership reports whether the user is bound to an institutional partnership.
func (r UsageRecord) HasPartnership() bool {
	return r.PartnershipID != nil && *r.PartnershipID != ""
}

// CountColumn maps a feature to its monthly counter column.
func CountColumn(feature featuredomain.Code) (string, error) {
	switch feature {
	case featuredomain.AISearch:
		return "search_count", nil
	case featuredomain.AIAnalysis:
		return "analysis_count", nil
	case featuredomain.AIGrantWriting:
		return "grant_writing_count", nil
	case featuredomain.AISynthesis:
		return "synthesis_count", nil
	default:
		return "", featuredomain.ErrInvalidFeature
	}
}

// LastUsedColumn maps a feature to its last-used timestamp column.
func LastUsedColumn(feature featuredomain.Code) (string, error) {
	switch feature {
	case featuredomain.AISearch:
		return "search_last_used_at", nil
	case featuredomain.AIAnalysis:
		return "analysis_last_used_at", nil
	case featuredomain.AIGrantWriting:
		return "grant_writing_last_used_at", nil
	case featuredomain.AISynthesis:
		return "synthesis_last_used_at", nil
	default:
		return "", featuredomain.ErrInvalidFeature
	}
}
