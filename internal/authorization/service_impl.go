package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

const (
	ObjectAuditLog    = "audit_log"
	ObjectCredit      = "credit"
	ObjectUsageRecord = "usage_record"
	ObjectPartnership = "partnership"
)

const (
	ActionAuditLogView         = "audit_log.view"
	ActionCreditGrant          = "credit.grant"
	ActionUsageRecordProvision = "usage_record.provision"
	ActionPartnershipManage    = "partnership.manage"
)

const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
	RoleUser    = "user"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an in-memory enforcer holding the built-in role policies.
func NewEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	userID := strings.TrimSpace(actor.UserID)
	if userID == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		role = RoleUser
	}
	subject := roleSubject(role)

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("user_id", userID),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}

	if shouldLogGrant(action) {
		s.log.Info("authorization granted",
			zap.String("user_id", userID),
			zap.String("role", role),
			zap.String("action", action),
		)
	}
	return nil
}

func roleSubject(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func shouldLogGrant(action string) bool {
	switch action {
	case ActionCreditGrant, ActionUsageRecordProvision, ActionPartnershipManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Support staff can inspect decisions
		{roleSubject(RoleSupport), ObjectAuditLog, ActionAuditLogView},

		// Admin permissions
		{roleSubject(RoleAdmin), ObjectCredit, ActionCreditGrant},
		{roleSubject(RoleAdmin), ObjectUsageRecord, ActionUsageRecordProvision},
		{roleSubject(RoleAdmin), ObjectPartnership, ActionPartnershipManage},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// admins inherit support permissions
	if _, err := enforcer.AddGroupingPolicy(roleSubject(RoleAdmin), roleSubject(RoleSupport)); err != nil {
		return err
	}
	return nil
}
