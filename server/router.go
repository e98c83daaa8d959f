package server

import (
	"github.com/gin-gonic/gin"

	"poultryflow/auth"
)

// Router wires the Gin engine with routes and middlewares.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)
	v1.GET("/products", s.handleListProducts)
	v1.GET("/products/:id", s.handleGetProduct)
	v1.GET("/referral-codes/:code", s.handleResolveReferralCode)

	authed := v1.Group("")
	authed.Use(Authenticate(s.authService))

	authed.POST("/bookings", s.handleCreateBooking)
	authed.GET("/bookings", s.handleMyBookings)
	authed.GET("/bookings/:id", s.handleGetBooking)

	agents := authed.Group("")
	agents.Use(RequireRole(auth.RoleAgent))
	agents.GET("/agents/me", s.handleAgentProfile)
	agents.GET("/agents/me/commissions", s.handleAgentCommissions)

	staff := authed.Group("")
	staff.Use(RequireStaff())
	staff.POST("/products", s.handleCreateProduct)
	staff.GET("/bookings/lookup", s.handleLookupBookings)
	staff.POST("/bookings/:id/transition", s.handleTransitionBooking)
	staff.PUT("/users/:id/role", s.handleChangeRole)
	staff.POST("/bookings/:id/credit", s.handleCreditBooking)
	staff.POST("/commissions/:id/payout", s.handlePayoutCommission)

	return r
}
