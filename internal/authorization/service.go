package authorization

import (
	"context"
	"errors"
)

// Actor is the authenticated caller of an admin operation.
type Actor struct {
	UserID string
	Role   string
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
