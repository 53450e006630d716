package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/meterguard/internal/clock"
	"github.com/smallbiznis/meterguard/internal/usagerecord/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usagerecord.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.UsageRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	record, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

// MarkGrandfathered switches the user to unlimited access. There is no way back.
func (s *Service) MarkGrandfathered(ctx context.Context, userID string) (*domain.UsageRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}

	var record *domain.UsageRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		fresh := domain.NewRecord(userID, now)
		if err := s.repo.Ensure(ctx, tx, &fresh); err != nil {
			return err
		}
		if _, err := s.repo.MarkGrandfathered(ctx, tx, userID, now); err != nil {
			return err
		}
		found, err := s.repo.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		record = found
		return nil
	})
	if err != nil {
		s.log.Error("failed to mark user grandfathered", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.log.Info("user marked grandfathered", zap.String("user_id", userID))
	return record, nil
}

// AssignPartnership binds the user to a partnership, or unbinds it when partnershipID is nil.
func (s *Service) AssignPartnership(ctx context.Context, userID string, partnershipID *string) (*domain.UsageRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if partnershipID != nil {
		trimmed := strings.TrimSpace(*partnershipID)
		if trimmed == "" {
			return nil, domain.ErrInvalidPartnership
		}
		partnershipID = &trimmed
	}

	var record *domain.UsageRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		fresh := domain.NewRecord(userID, now)
		if err := s.repo.Ensure(ctx, tx, &fresh); err != nil {
			return err
		}
		if _, err := s.repo.SetPartnership(ctx, tx, userID, partnershipID, now); err != nil {
			return err
		}
		found, err := s.repo.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		record = found
		return nil
	})
	if err != nil {
		s.log.Error("failed to assign partnership", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{zap.String("user_id", userID)}
	if partnershipID != nil {
		fields = append(fields, zap.String("partnership_id", *partnershipID))
	}
	s.log.Info("partnership assigned", fields...)
	return record, nil
}
