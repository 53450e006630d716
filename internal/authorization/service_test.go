package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorize_RolePolicies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{RoleAdmin, ObjectCredit, ActionCreditGrant, true},
		{RoleAdmin, ObjectUsageRecord, ActionUsageRecordProvision, true},
		{RoleAdmin, ObjectPartnership, ActionPartnershipManage, true},
		{RoleAdmin, ObjectAuditLog, ActionAuditLogView, true},
		{"ADMIN", ObjectAuditLog, ActionAuditLogView, true},
		{RoleSupport, ObjectAuditLog, ActionAuditLogView, true},
		{RoleSupport, ObjectCredit, ActionCreditGrant, false},
		{RoleUser, ObjectAuditLog, ActionAuditLogView, false},
		{"", ObjectPartnership, ActionPartnershipManage, false},
		{RoleAdmin, ObjectCredit, ActionAuditLogView, false},
	}
	for _, tc := range cases {
		err := svc.Authorize(ctx, Actor{UserID: "user-1", Role: tc.role}, tc.object, tc.action)
		if tc.allowed {
			assert.NoError(t, err, "%s %s", tc.role, tc.action)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s %s", tc.role, tc.action)
		}
	}
}

func TestAuthorize_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Role: RoleAdmin}, ObjectCredit, ActionCreditGrant), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{UserID: "u"}, " ", ActionCreditGrant), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{UserID: "u"}, ObjectCredit, ""), ErrInvalidAction)
}
