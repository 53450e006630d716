package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meterguard/internal/clock"
	ledgerdomain "github.com/smallbiznis/meterguard/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/meterguard/internal/observability/metrics"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"github.com/smallbiznis/meterguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	Repo       ledgerdomain.Repository
	RecordRepo usagerecorddomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	repo       ledgerdomain.Repository
	recordRepo usagerecorddomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		clock:      p.Clock,
		genID:      p.GenID,
		repo:       p.Repo,
		recordRepo: p.RecordRepo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (*ledgerdomain.CreditTransaction, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	at = at.UTC()

	var txn *ledgerdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debited, err := s.recordRepo.DebitCredits(ctx, tx, userID, req.Amount, req.Feature, req.UsedBefore, at)
		if err != nil {
			return err
		}
		if !debited {
			available, err := s.balance(ctx, tx, userID)
			if err != nil {
				return err
			}
			return &ledgerdomain.InsufficientCreditsError{Needed: req.Amount, Available: available}
		}

		balanceAfter, err := s.balance(ctx, tx, userID)
		if err != nil {
			return err
		}

		feature := req.Feature.String()
		txn = &ledgerdomain.CreditTransaction{
			ID:           s.genID.Generate(),
			UserID:       userID,
			Amount:       -req.Amount,
			BalanceAfter: balanceAfter,
			Reason:       ledgerdomain.ReasonFeatureUsage,
			Feature:      &feature,
			AuditLogID:   req.AuditLogID,
			CreatedAt:    at,
		}
		return s.repo.Insert(ctx, tx, txn)
	})
	if err != nil {
		var insufficient *ledgerdomain.InsufficientCreditsError
		if !errors.As(err, &insufficient) && !errors.Is(err, usagerecorddomain.ErrCooldownActive) {
			s.log.Error("credit debit failed",
				zap.String("user_id", userID),
				zap.String("feature", req.Feature.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.obsMetrics.RecordCreditsDebited(ctx, req.Feature.String(), req.Amount)
	s.log.Info("credits debited",
		zap.String("user_id", userID),
		zap.String("feature", req.Feature.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", txn.BalanceAfter),
	)
	return txn, nil
}

func (s *Service) Grant(ctx context.Context, req ledgerdomain.GrantRequest) (*ledgerdomain.CreditTransaction, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ledgerdomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	reason := req.Reason
	if reason == "" {
		reason = ledgerdomain.ReasonGrant
	}
	if reason != ledgerdomain.ReasonGrant && reason != ledgerdomain.ReasonPurchase {
		return nil, ledgerdomain.ErrInvalidReason
	}

	now := s.clock.Now().UTC()
	var txn *ledgerdomain.CreditTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := usagerecorddomain.NewRecord(userID, now)
		if err := s.recordRepo.Ensure(ctx, tx, &fresh); err != nil {
			return err
		}
		if _, err := s.recordRepo.AddCredits(ctx, tx, userID, req.Amount, reason == ledgerdomain.ReasonPurchase, now); err != nil {
			return err
		}
		balanceAfter, err := s.balance(ctx, tx, userID)
		if err != nil {
			return err
		}
		txn = &ledgerdomain.CreditTransaction{
			ID:           s.genID.Generate(),
			UserID:       userID,
			Amount:       req.Amount,
			BalanceAfter: balanceAfter,
			Reason:       reason,
			CreatedAt:    now,
		}
		return s.repo.Insert(ctx, tx, txn)
	})
	if err != nil {
		s.log.Error("credit grant failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.obsMetrics.RecordCreditsGranted(ctx, string(reason), req.Amount)
	s.log.Info("credits granted",
		zap.String("user_id", userID),
		zap.String("reason", string(reason)),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", txn.BalanceAfter),
	)
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, req ledgerdomain.ListTransactionsRequest) (ledgerdomain.ListTransactionsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidUser
	}

	beforeID, err := req.Before()
	if err != nil {
		return ledgerdomain.ListTransactionsResponse{}, ledgerdomain.ErrInvalidPageToken
	}
	pageSize := req.Limit(defaultPageSize, maxPageSize)

	items, err := s.repo.List(ctx, s.db, ledgerdomain.ListFilter{
		UserID:   userID,
		BeforeID: beforeID,
		Limit:    pageSize,
	})
	if err != nil {
		return ledgerdomain.ListTransactionsResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(item *ledgerdomain.CreditTransaction) snowflake.ID {
		return item.ID
	})
	return ledgerdomain.ListTransactionsResponse{
		Transactions: items,
		PageInfo:     &pageInfo,
	}, nil
}

func (s *Service) balance(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	record, err := s.recordRepo.FindByUserID(ctx, db, userID)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	return record.AvailableCredits, nil
}
