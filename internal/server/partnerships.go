package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/meterguard/internal/quota/domain"
)

func (s *Server) ListPartnershipLimits(c *gin.Context) {
	limits, err := s.quotaSvc.ListInstitutionalLimits(c.Request.Context(), strings.TrimSpace(c.Param("partnershipId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if limits == nil {
		limits = []quotadomain.InstitutionalLimit{}
	}

	c.JSON(http.StatusOK, gin.H{"data": limits})
}

func (s *Server) SetPartnershipLimit(c *gin.Context) {
	var req quotadomain.SetLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PartnershipID = strings.TrimSpace(c.Param("partnershipId"))

	limit, err := s.quotaSvc.SetInstitutionalLimit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": limit})
}
