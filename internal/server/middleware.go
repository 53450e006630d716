package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/meterguard/internal/authorization"
	obscontext "github.com/smallbiznis/meterguard/internal/observability/context"
)

const (
	contextActorKey  = "actor"
	contextUserIDKey = "user_id"
)

// tokenClaims is the HS256 bearer payload. Subject carries the user id.
type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthRequired rejects requests without a valid bearer token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := s.authenticate(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		setActor(c, actor)
		c.Next()
	}
}

// OptionalAuth resolves the actor when a valid token is present and lets the request through
// either way, so the handler can answer anonymous calls itself.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, err := s.authenticate(c); err == nil {
			setActor(c, actor)
		}
		c.Next()
	}
}

func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authenticate(c *gin.Context) (authorization.Actor, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return authorization.Actor{}, ErrUnauthorized
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return authorization.Actor{}, ErrUnauthorized
	}

	secret := strings.TrimSpace(s.cfg.AuthJWTSecret)
	if secret == "" {
		return authorization.Actor{}, ErrUnauthorized
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(parts[1], &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || token == nil || !token.Valid {
		return authorization.Actor{}, errors.Join(ErrUnauthorized, err)
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return authorization.Actor{}, ErrUnauthorized
	}

	return authorization.Actor{
		UserID: userID,
		Role:   strings.TrimSpace(claims.Role),
	}, nil
}

func setActor(c *gin.Context, actor authorization.Actor) {
	c.Set(contextActorKey, actor)
	c.Set(contextUserIDKey, actor.UserID)
	c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), actor.UserID))
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	if !ok || actor.UserID == "" {
		return authorization.Actor{}, false
	}
	return actor, true
}
