package domain

import (
	"time"

	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
)

// Source names where the effective monthly limit came from.
type Source string

const (
	SourceGrandfathered Source = "grandfathered"
	SourceInstitutional Source = "institutional"
	SourceFree          Source = "free"
)

// Unlimited is the monthly limit value meaning no cap.
const Unlimited int64 = -1

// InstitutionalLimit overrides the free-tier quota of one feature for a partnership.
type InstitutionalLimit struct {
	PartnershipID string    `gorm:"primaryKey;type:text" json:"partnership_id"`
	Feature       string    `gorm:"primaryKey;type:text" json:"feature"`
	MonthlyLimit  int64     `gorm:"not null" json:"monthly_limit"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (InstitutionalLimit) TableName() string { return "institutional_limits" }

// Evaluation is the effective limit of one feature for one user after rollover.
type Evaluation struct {
	Feature   featuredomain.Code
	Source    Source
	Limit     int64
	Used      int64
	Unlimited bool
	Record    usagerecorddomain.UsageRecord
}

// WithinLimit reports whether one more call fits in the monthly allowance.
func (e Evaluation) WithinLimit() bool {
	return e.Unlimited || e.Used < e.Limit
}

// Remaining is -1 for unlimited evaluations.
func (e Evaluation) Remaining() int64 {
	if e.Unlimited {
		return Unlimited
	}
	if e.Used >= e.Limit {
		return 0
	}
	return e.Limit - e.Used
}

// Projection evaluates every feature against one record snapshot.
type Projection struct {
	Source   Source
	Record   usagerecorddomain.UsageRecord
	Features map[featuredomain.Code]Evaluation
}
