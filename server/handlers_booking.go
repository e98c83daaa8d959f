package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"poultryflow/booking"
)

type createBookingRequest struct {
	ProductID    string  `json:"productId"`
	Quantity     int     `json:"quantity"`
	ContactName  string  `json:"contactName"`
	ContactPhone string  `json:"contactPhone"`
	ReferralCode *string `json:"referralCode,omitempty"`
}

type transitionBookingRequest struct {
	ExpectedStatus     string  `json:"expectedStatus,omitempty"`
	NextStatus         string  `json:"nextStatus"`
	StaffNote          *string `json:"staffNote,omitempty"`
	ExpectedCollection *string `json:"expectedCollection,omitempty"`
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	b, err := s.bookingService.Create(c.Request.Context(), booking.CreateParams{
		CustomerID:   actorID(c),
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": newBookingResponse(b)})
}

func (s *Server) handleGetBooking(c *gin.Context) {
	b, err := s.bookingService.Get(c.Request.Context(), c.Param("id"), actorID(c), actorRole(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": newBookingResponse(b)})
}

func (s *Server) handleMyBookings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := s.bookingService.ListForCustomer(c.Request.Context(), actorID(c), limit, offset)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": newBookingListResponse(bookings)})
}

func (s *Server) handleLookupBookings(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "phone query parameter required")
		return
	}

	bookings, err := s.bookingService.LookupByPhone(c.Request.Context(), phone, actorRole(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": newBookingListResponse(bookings)})
}

func (s *Server) handleTransitionBooking(c *gin.Context) {
	var req transitionBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}

	params := booking.TransitionParams{
		BookingID:      c.Param("id"),
		ActorID:        actorID(c),
		ExpectedStatus: booking.Status(req.ExpectedStatus),
		NextStatus:     booking.Status(req.NextStatus),
		StaffNote:      req.StaffNote,
	}
	if req.ExpectedCollection != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpectedCollection)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "expectedCollection must be RFC 3339")
			return
		}
		params.ExpectedCollection = &t
	}

	b, err := s.bookingService.Transition(c.Request.Context(), params)
	if err != nil {
		serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": newBookingResponse(b)})
}
