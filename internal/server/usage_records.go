package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	usagerecorddomain "github.com/smallbiznis/meterguard/internal/usagerecord/domain"
)

type usageRecordResponse struct {
	UserID                   string    `json:"user_id"`
	PeriodStart              time.Time `json:"period_start"`
	PeriodEnd                time.Time `json:"period_end"`
	IsGrandfathered          bool      `json:"is_grandfathered"`
	PartnershipID            *string   `json:"partnership_id"`
	AvailableCredits         int64     `json:"available_credits"`
	LifetimeCreditsPurchased int64     `json:"lifetime_credits_purchased"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func toUsageRecordResponse(record *usagerecorddomain.UsageRecord) usageRecordResponse {
	return usageRecordResponse{
		UserID:                   record.UserID,
		PeriodStart:              record.PeriodStart,
		PeriodEnd:                record.PeriodEnd,
		IsGrandfathered:          record.IsGrandfathered,
		PartnershipID:            record.PartnershipID,
		AvailableCredits:         record.AvailableCredits,
		LifetimeCreditsPurchased: record.LifetimeCreditsPurchased,
		UpdatedAt:                record.UpdatedAt,
	}
}

func (s *Server) GetUsageRecord(c *gin.Context) {
	record, err := s.usageRecordSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toUsageRecordResponse(record)})
}

func (s *Server) MarkGrandfathered(c *gin.Context) {
	record, err := s.usageRecordSvc.MarkGrandfathered(c.Request.Context(), strings.TrimSpace(c.Param("userId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toUsageRecordResponse(record)})
}

type assignPartnershipRequest struct {
	// Null unbinds the user.
	PartnershipID *string `json:"partnership_id"`
}

func (s *Server) AssignPartnership(c *gin.Context) {
	var req assignPartnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.usageRecordSvc.AssignPartnership(c.Request.Context(), strings.TrimSpace(c.Param("userId")), req.PartnershipID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toUsageRecordResponse(record)})
}
