package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/meterguard/internal/clock"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	"github.com/smallbiznis/meterguard/internal/quota/domain"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	RecordRepo usagerecorddomain.Repository
	Features   featuredomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	recordRepo usagerecorddomain.Repository
	features   featuredomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quota.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		recordRepo: p.RecordRepo,
		features:   p.Features,
	}
}

func (s *Service) Evaluate(ctx context.Context, userID string, feature featuredomain.Code, now time.Time) (domain.Evaluation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Evaluation{}, domain.ErrInvalidUser
	}
	def, err := s.features.Definition(feature)
	if err != nil {
		return domain.Evaluation{}, err
	}

	record, err := s.rollover(ctx, userID, now)
	if err != nil {
		return domain.Evaluation{}, err
	}

	if record.IsGrandfathered {
		return grandfathered(*record, feature), nil
	}
	if record.HasPartnership() {
		limit, err := s.repo.Get(ctx, s.db, *record.PartnershipID, feature.String())
		if err != nil {
			return domain.Evaluation{}, err
		}
		effective := def.MonthlyQuota
		if limit != nil {
			effective = limit.MonthlyLimit
		}
		return evaluation(*record, feature, domain.SourceInstitutional, effective), nil
	}
	return evaluation(*record, feature, domain.SourceFree, def.MonthlyQuota), nil
}

// rollover resets the monthly window at most once per period. The unlocked read keeps the
// common case free of a write transaction; the decision is repeated under the row lock.
func (s *Service) rollover(ctx context.Context, userID string, now time.Time) (*usagerecorddomain.UsageRecord, error) {
	record, err := s.recordRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, usagerecorddomain.ErrNotFound
	}
	if now.Before(record.PeriodEnd) {
		return record, nil
	}

	var current usagerecorddomain.UsageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.recordRepo.FindForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		rolled, changed := locked.RollPeriod(now)
		current = rolled
		if !changed {
			return nil
		}
		if err := s.recordRepo.SavePeriod(ctx, tx, &rolled, now); err != nil {
			return err
		}
		s.log.Info("monthly usage period rolled over",
			zap.String("user_id", userID),
			zap.Time("period_start", rolled.PeriodStart),
			zap.Time("period_end", rolled.PeriodEnd),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &current, nil
}

func (s *Service) Consume(ctx context.Context, eval domain.Evaluation, now time.Time) (bool, error) {
	def, err := s.features.Definition(eval.Feature)
	if err != nil {
		return false, err
	}
	usedBefore := cooldownCutoff(def.Cooldown, now)

	if eval.Source == domain.SourceGrandfathered {
		// unmetered, but cooldowns still need the timestamp
		if err := s.recordRepo.TouchLastUsed(ctx, s.db, eval.Record.UserID, eval.Feature, usedBefore, now); err != nil {
			return false, err
		}
		return true, nil
	}
	limit := eval.Limit
	if eval.Unlimited {
		limit = domain.Unlimited
	}
	return s.recordRepo.IncrementMonthly(ctx, s.db, eval.Record.UserID, eval.Feature, limit, usedBefore, now)
}

func cooldownCutoff(cooldown time.Duration, now time.Time) *time.Time {
	if cooldown <= 0 {
		return nil
	}
	cutoff := now.Add(-cooldown)
	return &cutoff
}

func (s *Service) Project(ctx context.Context, record usagerecorddomain.UsageRecord, now time.Time) (domain.Projection, error) {
	rolled, _ := record.RollPeriod(now)
	catalog := s.features.Catalog()

	projection := domain.Projection{
		Source:   domain.SourceFree,
		Record:   rolled,
		Features: make(map[featuredomain.Code]domain.Evaluation, len(featuredomain.All)),
	}

	overrides := map[string]int64{}
	switch {
	case rolled.IsGrandfathered:
		projection.Source = domain.SourceGrandfathered
	case rolled.HasPartnership():
		projection.Source = domain.SourceInstitutional
		limits, err := s.repo.ListByPartnership(ctx, s.db, *rolled.PartnershipID)
		if err != nil {
			return domain.Projection{}, err
		}
		for _, limit := range limits {
			overrides[limit.Feature] = limit.MonthlyLimit
		}
	}

	for _, def := range catalog.Definitions() {
		if projection.Source == domain.SourceGrandfathered {
			projection.Features[def.Code] = grandfathered(rolled, def.Code)
			continue
		}
		limit := def.MonthlyQuota
		if override, ok := overrides[def.Code.String()]; ok {
			limit = override
		}
		projection.Features[def.Code] = evaluation(rolled, def.Code, projection.Source, limit)
	}
	return projection, nil
}

func (s *Service) SetInstitutionalLimit(ctx context.Context, req domain.SetLimitRequest) (*domain.InstitutionalLimit, error) {
	partnershipID := strings.TrimSpace(req.PartnershipID)
	if partnershipID == "" {
		return nil, domain.ErrInvalidPartnership
	}
	feature, err := featuredomain.Parse(req.Feature)
	if err != nil {
		return nil, err
	}
	if req.MonthlyLimit < domain.Unlimited {
		return nil, domain.ErrInvalidLimit
	}

	now := s.clock.Now()
	limit := &domain.InstitutionalLimit{
		PartnershipID: partnershipID,
		Feature:       feature.String(),
		MonthlyLimit:  req.MonthlyLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Upsert(ctx, s.db, limit); err != nil {
		return nil, err
	}

	s.log.Info("institutional limit set",
		zap.String("partnership_id", partnershipID),
		zap.String("feature", feature.String()),
		zap.Int64("monthly_limit", req.MonthlyLimit),
	)
	return s.repo.Get(ctx, s.db, partnershipID, feature.String())
}

func (s *Service) ListInstitutionalLimits(ctx context.Context, partnershipID string) ([]domain.InstitutionalLimit, error) {
	partnershipID = strings.TrimSpace(partnershipID)
	if partnershipID == "" {
		return nil, domain.ErrInvalidPartnership
	}
	return s.repo.ListByPartnership(ctx, s.db, partnershipID)
}

func grandfathered(record usagerecorddomain.UsageRecord, feature featuredomain.Code) domain.Evaluation {
	return domain.Evaluation{
		Feature:   feature,
		Source:    domain.SourceGrandfathered,
		Limit:     domain.Unlimited,
		Used:      record.MonthlyCount(feature),
		Unlimited: true,
		Record:    record,
	}
}

func evaluation(record usagerecorddomain.UsageRecord, feature featuredomain.Code, source domain.Source, limit int64) domain.Evaluation {
	return domain.Evaluation{
		Feature:   feature,
		Source:    source,
		Limit:     limit,
		Used:      record.MonthlyCount(feature),
		Unlimited: limit < 0,
		Record:    record,
	}
}
