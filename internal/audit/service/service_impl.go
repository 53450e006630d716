package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/meterguard/internal/audit/domain"
	"github.com/smallbiznis/meterguard/internal/clock"
	obscontext "github.com/smallbiznis/meterguard/internal/observability/context"
	"github.com/smallbiznis/meterguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) NextID() snowflake.ID {
	return s.genID.Generate()
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) (*auditdomain.UsageAuditLog, error) {
	if !entry.Outcome.Valid() {
		return nil, auditdomain.ErrInvalidOutcome
	}

	id := entry.ID
	if id == 0 {
		id = s.genID.Generate()
	}
	at := entry.At
	if at.IsZero() {
		at = s.clock.Now()
	}

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if strings.TrimSpace(key) == "" || value == nil {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if clientIP := obscontext.ClientIPFromContext(ctx); clientIP != "" {
		payload["client_ip"] = clientIP
	}
	if userAgent := obscontext.UserAgentFromContext(ctx); userAgent != "" {
		payload["user_agent"] = userAgent
	}

	row := auditdomain.UsageAuditLog{
		ID:             id,
		UserID:         strings.TrimSpace(entry.UserID),
		Feature:        strings.TrimSpace(entry.Feature),
		Outcome:        entry.Outcome,
		Reason:         entry.Reason,
		Source:         entry.Source,
		CreditsCharged: entry.CreditsCharged,
		Free:           entry.Free,
		CreatedAt:      at.UTC(),
	}
	if len(payload) > 0 {
		row.Metadata = datatypes.JSONMap(payload)
	}

	if err := s.repo.Insert(ctx, s.db, &row); err != nil {
		s.log.Warn("failed to write usage audit log",
			zap.String("user_id", row.UserID),
			zap.String("outcome", string(row.Outcome)),
			zap.Error(err),
		)
		return nil, err
	}
	return &row, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	if outcome := strings.TrimSpace(req.Outcome); outcome != "" && !auditdomain.Outcome(outcome).Valid() {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOutcome
	}

	beforeID, err := req.Before()
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}
	pageSize := req.Limit(defaultPageSize, maxPageSize)

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		UserID:   req.UserID,
		Feature:  req.Feature,
		Outcome:  req.Outcome,
		StartAt:  req.StartAt,
		EndAt:    req.EndAt,
		BeforeID: beforeID,
		Limit:    pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(item *auditdomain.UsageAuditLog) snowflake.ID {
		return item.ID
	})

	logs := make([]auditdomain.UsageAuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{AuditLogs: logs, PageInfo: pageInfo}, nil
}
