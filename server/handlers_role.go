package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"poultryflow/auth"
	"poultryflow/role"
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleChangeRole(c *gin.Context) {
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	newRole := auth.Role(req.Role)
	if !newRole.Valid() {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown role")
		return
	}

	err := s.roleService.ChangeRole(c.Request.Context(), role.ChangeRoleParams{
		ActorID: actorID(c),
		UserID:  c.Param("id"),
		NewRole: newRole,
	})
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": c.Param("id"), "role": req.Role})
}

func (s *Server) handleAgentProfile(c *gin.Context) {
	profile, err := s.roleService.GetAgentProfile(c.Request.Context(), actorID(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": newAgentProfileResponse(profile)})
}
