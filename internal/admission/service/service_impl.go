package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterguard/internal/admission/domain"
	auditdomain "github.com/smallbiznis/meterguard/internal/audit/domain"
	"github.com/smallbiznis/meterguard/internal/clock"
	"github.com/smallbiznis/meterguard/internal/cooldown"
	featuredomain "github.com/smallbiznis/meterguard/internal/feature/domain"
	ledgerdomain "github.com/smallbiznis/meterguard/internal/ledger/domain"
	obslogger "github.com/smallbiznis/meterguard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/meterguard/internal/observability/metrics"
	"github.com/smallbiznis/meterguard/internal/observability/tracing"
	quotadomain "github.com/smallbiznis/meterguard/internal/quota/domain"
	"github.com/smallbiznis/meterguard/internal/ratelimit"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"github.com/smallbiznis/meterguard/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Features     featuredomain.Service
	RecordRepo   usagerecorddomain.Repository
	Limiter      ratelimit.Limiter
	Cooldown     *cooldown.Guard
	Quota        quotadomain.Service
	Ledger       ledgerdomain.Service
	Audit        auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics      `optional:"true"`
	StoreMetrics *obsmetrics.StoreMetrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	features     featuredomain.Service
	recordRepo   usagerecorddomain.Repository
	limiter      ratelimit.Limiter
	cooldown     *cooldown.Guard
	quota        quotadomain.Service
	ledger       ledgerdomain.Service
	audit        auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
	storeMetrics *obsmetrics.StoreMetrics
	tracer       trace.Tracer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("admission.service"),
		clock:        p.Clock,
		features:     p.Features,
		recordRepo:   p.RecordRepo,
		limiter:      p.Limiter,
		cooldown:     p.Cooldown,
		quota:        p.Quota,
		ledger:       p.Ledger,
		audit:        p.Audit,
		obsMetrics:   p.ObsMetrics,
		storeMetrics: p.StoreMetrics,
		tracer:       otel.Tracer("meterguard/admission"),
	}
}

// admission carries the state of one Admit call through its steps.
type admission struct {
	userID  string
	feature featuredomain.Code
	now     time.Time
	auditID snowflake.ID
	meta    map[string]any
}

func (s *Service) Admit(ctx context.Context, userID string, rawFeature string) domain.Decision {
	ctx, span := s.tracer.Start(ctx, "admission.Admit")
	defer span.End()

	a := &admission{
		userID: strings.TrimSpace(userID),
		now:    s.clock.Now().UTC(),
		meta:   map[string]any{},
	}

	decision := s.decide(ctx, a, rawFeature)
	decision.Feature = a.feature.String()
	if decision.Feature == "" {
		decision.Feature = strings.TrimSpace(rawFeature)
	}

	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("feature", a.feature.String()),
		attribute.String("outcome", string(decision.Outcome)),
		attribute.String("source", decision.Source),
	)...)
	if decision.Outcome == domain.OutcomeSystemFailure {
		span.SetStatus(codes.Error, string(decision.Outcome))
	}

	decision.AuditLogID = s.writeAudit(ctx, a, decision)

	metricFeature := a.feature.String()
	if metricFeature == "" {
		metricFeature = "unknown"
	}
	s.obsMetrics.RecordAdmissionDecision(ctx, metricFeature, string(decision.Outcome), decision.Source)
	if decision.Outcome == domain.OutcomeRateLimited {
		s.obsMetrics.RecordRateLimitDenied(ctx, decision.Scope)
	}

	obslogger.WithContext(ctx, s.log).Debug("admission decided",
		zap.String("user_id", a.userID),
		zap.String("feature", decision.Feature),
		zap.String("outcome", string(decision.Outcome)),
		zap.String("source", decision.Source),
		zap.String("reason", decision.Reason),
	)
	return decision
}

func (s *Service) decide(ctx context.Context, a *admission, rawFeature string) domain.Decision {
	if a.userID == "" {
		return domain.Decision{Outcome: domain.OutcomeUnauthenticated, Reason: domain.ReasonMissingUser}
	}

	feature, err := featuredomain.Parse(rawFeature)
	if err != nil {
		return domain.Decision{Outcome: domain.OutcomeInvalidFeature, Reason: domain.ReasonUnknownFeature}
	}
	a.feature = feature
	def, err := s.features.Definition(feature)
	if err != nil {
		return domain.Decision{Outcome: domain.OutcomeInvalidFeature, Reason: domain.ReasonUnknownFeature}
	}

	fresh := usagerecorddomain.NewRecord(a.userID, a.now)
	if err := s.step(obsmetrics.StoreOperationEnsureRecord, func() error {
		return s.recordRepo.Ensure(ctx, s.db, &fresh)
	}); err != nil {
		return s.systemFailure(ctx, a, obsmetrics.StoreOperationEnsureRecord, err)
	}

	var rate ratelimit.Result
	if err := s.step(obsmetrics.StoreOperationRateLimit, func() error {
		var err error
		rate, err = s.limiter.CheckAndConsume(ctx, a.userID, a.now)
		return err
	}); err != nil {
		return s.systemFailure(ctx, a, obsmetrics.StoreOperationRateLimit, err)
	}
	if !rate.Allowed {
		a.meta["hourly_used"] = rate.Hourly.Used
		a.meta["daily_used"] = rate.Daily.Used
		return domain.Decision{
			Outcome:           domain.OutcomeRateLimited,
			Reason:            domain.ReasonRateLimit,
			Scope:             string(rate.Scope),
			RetryAfterSeconds: domain.RetryAfterSeconds(rate.RetryAfter),
		}
	}

	var record *usagerecorddomain.UsageRecord
	if err := s.step(obsmetrics.StoreOperationLoadRecord, func() error {
		var err error
		record, err = s.recordRepo.FindByUserID(ctx, s.db, a.userID)
		if err == nil && record == nil {
			err = usagerecorddomain.ErrNotFound
		}
		return err
	}); err != nil {
		return s.systemFailure(ctx, a, obsmetrics.StoreOperationLoadRecord, err)
	}

	if cd := s.cooldown.Check(*record, feature, a.now); !cd.Allowed {
		return domain.Decision{
			Outcome:           domain.OutcomeCooldownActive,
			Reason:            domain.ReasonCooldown,
			RetryAfterSeconds: domain.RetryAfterSeconds(cd.RetryAfter),
		}
	}

	var eval quotadomain.Evaluation
	if err := s.step(obsmetrics.StoreOperationQuota, func() error {
		var err error
		eval, err = s.quota.Evaluate(ctx, a.userID, feature, a.now)
		return err
	}); err != nil {
		return s.systemFailure(ctx, a, obsmetrics.StoreOperationQuota, err)
	}
	a.meta["limit"] = eval.Limit
	a.meta["used"] = eval.Used

	if eval.WithinLimit() {
		var consumed, cooling bool
		if err := s.step(obsmetrics.StoreOperationIncrement, func() error {
			var err error
			consumed, err = s.quota.Consume(ctx, eval, a.now)
			if errors.Is(err, usagerecorddomain.ErrCooldownActive) {
				cooling = true
				return nil
			}
			return err
		}); err != nil {
			return s.systemFailure(ctx, a, obsmetrics.StoreOperationIncrement, err)
		}
		if cooling {
			return s.cooldownLost(ctx, a, feature)
		}
		if consumed {
			used := eval.Used
			if eval.Source != quotadomain.SourceGrandfathered {
				used++
			}
			return domain.Decision{
				Outcome: domain.OutcomeAllowed,
				Source:  string(eval.Source),
				Free:    true,
				Limit:   eval.Limit,
				Used:    used,
				Balance: eval.Record.AvailableCredits,
			}
		}
		// lost the last unit to a concurrent call
		eval.Used = eval.Limit
	}

	if eval.Source == quotadomain.SourceInstitutional {
		return domain.Decision{
			Outcome: domain.OutcomeQuotaExceeded,
			Source:  string(eval.Source),
			Reason:  domain.ReasonInstitutionalExhausted,
			Limit:   eval.Limit,
			Used:    eval.Used,
		}
	}

	return s.payWithCredits(ctx, a, eval, def)
}

func (s *Service) payWithCredits(ctx context.Context, a *admission, eval quotadomain.Evaluation, def featuredomain.Definition) domain.Decision {
	a.auditID = s.audit.NextID()
	cost := def.CreditCost

	req := ledgerdomain.DebitRequest{
		UserID:     a.userID,
		Amount:     cost,
		Feature:    a.feature,
		AuditLogID: &a.auditID,
		At:         a.now,
	}
	if def.Cooldown > 0 {
		usedBefore := a.now.Add(-def.Cooldown)
		req.UsedBefore = &usedBefore
	}

	var (
		txn          *ledgerdomain.CreditTransaction
		insufficient *ledgerdomain.InsufficientCreditsError
		cooling      bool
	)
	err := s.step(obsmetrics.StoreOperationCreditDebit, func() error {
		var err error
		txn, err = s.ledger.Debit(ctx, req)
		if errors.As(err, &insufficient) {
			return nil
		}
		if errors.Is(err, usagerecorddomain.ErrCooldownActive) {
			cooling = true
			return nil
		}
		return err
	})
	if err != nil {
		return s.systemFailure(ctx, a, obsmetrics.StoreOperationCreditDebit, err)
	}
	if cooling {
		return s.cooldownLost(ctx, a, a.feature)
	}

	if insufficient != nil {
		return domain.Decision{
			Outcome:          domain.OutcomeQuotaExceeded,
			Source:           string(eval.Source),
			Reason:           domain.ReasonNoCredits,
			Limit:            eval.Limit,
			Used:             eval.Used,
			CreditsNeeded:    insufficient.Needed,
			CreditsAvailable: insufficient.Available,
		}
	}

	a.meta["credit_transaction_id"] = txn.ID.String()
	return domain.Decision{
		Outcome:        domain.OutcomeAllowed,
		Source:         domain.SourceCredits,
		CreditsCharged: cost,
		Balance:        txn.BalanceAfter,
		Limit:          eval.Limit,
		Used:           eval.Used,
	}
}

// cooldownLost reports a call whose cooldown was claimed by a concurrent call after the
// snapshot check passed.
func (s *Service) cooldownLost(ctx context.Context, a *admission, feature featuredomain.Code) domain.Decision {
	retryAfter := time.Second
	record, err := s.recordRepo.FindByUserID(ctx, s.db, a.userID)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("reload after cooldown conflict failed",
			zap.String("user_id", a.userID),
			zap.Error(err),
		)
	} else if record != nil {
		if cd := s.cooldown.Check(*record, feature, a.now); !cd.Allowed {
			retryAfter = cd.RetryAfter
		}
	}
	a.meta["cooldown_conflict"] = true
	return domain.Decision{
		Outcome:           domain.OutcomeCooldownActive,
		Reason:            domain.ReasonCooldown,
		RetryAfterSeconds: domain.RetryAfterSeconds(retryAfter),
	}
}

// step times one storage operation and counts its failure.
func (s *Service) step(operation string, fn func() error) error {
	started := time.Now()
	err := fn()
	s.storeMetrics.ObserveOperation(operation, time.Since(started))
	if err != nil {
		s.storeMetrics.IncOperationError(operation, err)
	}
	return err
}

func (s *Service) systemFailure(ctx context.Context, a *admission, operation string, err error) domain.Decision {
	s.storeMetrics.IncSystemFailure(operation)
	trace.SpanFromContext(ctx).RecordError(tracing.SafeError(err))
	reason := db.FailureReason(err)
	retryable := db.IsRetryable(err)
	obslogger.WithContext(ctx, s.log).Error("admission storage failure",
		zap.String("user_id", a.userID),
		zap.String("feature", a.feature.String()),
		zap.String("operation", operation),
		zap.String("failure_reason", reason),
		zap.Bool("retryable", retryable),
		zap.Error(err),
	)
	a.meta["operation"] = operation
	a.meta["failure_reason"] = reason
	a.meta["retryable"] = retryable
	return domain.Decision{Outcome: domain.OutcomeSystemFailure, Reason: domain.ReasonStorageFailure}
}

// writeAudit is best effort. A failed write is logged and counted and the decision stands.
func (s *Service) writeAudit(ctx context.Context, a *admission, decision domain.Decision) snowflake.ID {
	meta := a.meta
	if decision.RetryAfterSeconds > 0 {
		meta["retry_after_seconds"] = decision.RetryAfterSeconds
	}
	if decision.Scope != "" {
		meta["scope"] = decision.Scope
	}
	if decision.CreditsNeeded > 0 {
		meta["credits_needed"] = decision.CreditsNeeded
		meta["credits_available"] = decision.CreditsAvailable
	}

	var row *auditdomain.UsageAuditLog
	err := s.step(obsmetrics.StoreOperationAuditWrite, func() error {
		var err error
		row, err = s.audit.Record(ctx, auditdomain.Entry{
			ID:             a.auditID,
			UserID:         a.userID,
			Feature:        decision.Feature,
			Outcome:        auditdomain.Outcome(decision.Outcome),
			Reason:         decision.Reason,
			Source:         decision.Source,
			CreditsCharged: decision.CreditsCharged,
			Free:           decision.Free,
			Metadata:       meta,
			At:             a.now,
		})
		return err
	})
	if err != nil {
		s.obsMetrics.RecordAuditWriteFailure(ctx, string(decision.Outcome))
		obslogger.WithContext(ctx, s.log).Warn("usage audit write failed",
			zap.String("user_id", a.userID),
			zap.String("outcome", string(decision.Outcome)),
			zap.Error(err),
		)
		return 0
	}
	return row.ID
}

func (s *Service) GetUsageStatus(ctx context.Context, userID string) (domain.UsageStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UsageStatus{}, domain.ErrInvalidUser
	}
	now := s.clock.Now().UTC()

	record, err := s.recordRepo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.UsageStatus{}, err
	}
	if record == nil {
		fresh := usagerecorddomain.NewRecord(userID, now)
		record = &fresh
	}

	rates, err := s.limiter.Usage(ctx, userID, now)
	if err != nil {
		return domain.UsageStatus{}, err
	}
	projection, err := s.quota.Project(ctx, *record, now)
	if err != nil {
		return domain.UsageStatus{}, err
	}

	status := domain.UsageStatus{
		UserID:     userID,
		AccessType: string(projection.Source),
		Credits: domain.CreditStatus{
			Available:         projection.Record.AvailableCredits,
			LifetimePurchased: projection.Record.LifetimeCreditsPurchased,
		},
		CurrentPeriod: domain.Period{
			Start: projection.Record.PeriodStart.UTC(),
			End:   projection.Record.PeriodEnd.UTC(),
		},
		Features: make(map[string]domain.FeatureStatus, len(projection.Features)),
		RateLimits: domain.RateLimitStatus{
			Hourly: windowStatus(rates.Hourly),
			Daily:  windowStatus(rates.Daily),
		},
	}
	for code, eval := range projection.Features {
		limit := eval.Limit
		if eval.Unlimited {
			limit = quotadomain.Unlimited
		}
		status.Features[code.String()] = domain.FeatureStatus{
			Limit:     limit,
			Used:      eval.Used,
			Remaining: eval.Remaining(),
		}
	}
	return status, nil
}

func windowStatus(w ratelimit.WindowUsage) domain.WindowStatus {
	return domain.WindowStatus{
		Limit:     w.Limit,
		Used:      w.Used,
		Remaining: w.Remaining(),
		ResetAt:   w.ResetAt.UTC(),
	}
}
