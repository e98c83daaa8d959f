package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleResolveReferralCode checks a referral code before booking. It leaks
// nothing beyond the code's validity.
func (s *Server) handleResolveReferralCode(c *gin.Context) {
	profile, err := s.referralService.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referralCode": profile.ReferralCode, "valid": true})
}

func (s *Server) handleAgentCommissions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	commissions, err := s.referralService.ListForAgent(c.Request.Context(), actorID(c), limit)
	if err != nil {
		serviceError(c, err)
		return
	}

	out := make([]commissionResponse, 0, len(commissions))
	for _, cm := range commissions {
		out = append(out, newCommissionResponse(cm))
	}
	c.JSON(http.StatusOK, gin.H{"commissions": out})
}

// handleCreditBooking lets staff trigger crediting directly, outside the
// outbox path. Replays are accepted and answered with 202.
func (s *Server) handleCreditBooking(c *gin.Context) {
	if err := s.referralService.Credit(c.Request.Context(), c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"bookingId": c.Param("id"), "status": "credited"})
}

func (s *Server) handlePayoutCommission(c *gin.Context) {
	if err := s.referralService.MarkPaidOut(c.Request.Context(), c.Param("id")); err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissionId": c.Param("id"), "status": "paid_out"})
}
