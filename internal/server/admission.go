package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	admissiondomain "github.com/smallbiznis/meterguard/internal/admission/domain"
)

// Admit asks for permission to run one metered feature call. The decision body is
// returned for every outcome; the status code tells clients how to react.
func (s *Server) Admit(c *gin.Context) {
	var userID string
	if actor, ok := actorFromContext(c); ok {
		userID = actor.UserID
	}

	feature := strings.TrimSpace(c.Param("feature"))
	decision := s.admissionSvc.Admit(c.Request.Context(), userID, feature)

	c.Set("feature", feature)
	c.Set("outcome", string(decision.Outcome))

	if decision.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds, 10))
	}
	c.JSON(decisionStatus(decision), gin.H{"data": decision})
}

func decisionStatus(decision admissiondomain.Decision) int {
	switch decision.Outcome {
	case admissiondomain.OutcomeAllowed:
		return http.StatusOK
	case admissiondomain.OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case admissiondomain.OutcomeInvalidFeature:
		return http.StatusBadRequest
	case admissiondomain.OutcomeRateLimited, admissiondomain.OutcomeCooldownActive:
		return http.StatusTooManyRequests
	case admissiondomain.OutcomeQuotaExceeded:
		return http.StatusPaymentRequired
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) GetUsageStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	status, err := s.admissionSvc.GetUsageStatus(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
