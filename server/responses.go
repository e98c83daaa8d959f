package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"poultryflow/auth"
	"poultryflow/booking"
	"poultryflow/product"
	"poultryflow/referral"
	"poultryflow/role"
)

func abortError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{"code": code, "message": message},
	})
}

// serviceError maps domain sentinels onto HTTP status codes. Anything
// unmapped becomes a 500 with the details kept out of the response body.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidQuantity),
		errors.Is(err, booking.ErrUnknownStatus),
		errors.Is(err, product.ErrInvalidProduct),
		errors.Is(err, auth.ErrWeakPassword):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	case errors.Is(err, auth.ErrAccountSuspended),
		errors.Is(err, booking.ErrForbidden),
		errors.Is(err, role.ErrSelfRoleChange),
		errors.Is(err, booking.ErrProductInactive):
		respondError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, booking.ErrProductNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, role.ErrUserNotFound),
		errors.Is(err, role.ErrAgentNotFound),
		errors.Is(err, referral.ErrCodeNotFound),
		errors.Is(err, referral.ErrCommissionNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, booking.ErrStatusConflict),
		errors.Is(err, role.ErrStateConflict),
		errors.Is(err, role.ErrReferralCodeTaken):
		respondError(c, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrNoteNotAllowed),
		errors.Is(err, referral.ErrBookingNotCounted),
		errors.Is(err, referral.ErrNoReferralCode):
		respondError(c, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

type userResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FullName  string  `json:"fullName"`
	Phone     *string `json:"phone,omitempty"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"createdAt"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type productResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Category          string `json:"category"`
	UnitPrice         int64  `json:"unitPrice"`
	BookingFeePerUnit int64  `json:"bookingFeePerUnit"`
	Active            bool   `json:"active"`
	CreatedAt         string `json:"createdAt"`
}

func newProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		Name:              p.Name,
		Category:          string(p.Category),
		UnitPrice:         p.UnitPrice,
		BookingFeePerUnit: p.BookingFeePerUnit,
		Active:            p.Active,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
}

type bookingResponse struct {
	ID                 string  `json:"id"`
	CustomerID         string  `json:"customerId"`
	ProductID          string  `json:"productId"`
	Quantity           int     `json:"quantity"`
	BookingFee         int64   `json:"bookingFee"`
	ContactName        string  `json:"contactName"`
	ContactPhone       string  `json:"contactPhone"`
	ReferralCode       *string `json:"referralCode,omitempty"`
	Status             string  `json:"status"`
	StaffNote          *string `json:"staffNote,omitempty"`
	ExpectedCollection *string `json:"expectedCollection,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
}

func newBookingResponse(b booking.Booking) bookingResponse {
	resp := bookingResponse{
		ID:           b.ID,
		CustomerID:   b.CustomerID,
		ProductID:    b.ProductID,
		Quantity:     b.Quantity,
		BookingFee:   b.BookingFee,
		ContactName:  b.ContactName,
		ContactPhone: b.ContactPhone,
		ReferralCode: b.ReferralCode,
		Status:       string(b.Status),
		StaffNote:    b.StaffNote,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    b.UpdatedAt.Format(time.RFC3339),
	}
	if b.ExpectedCollection != nil {
		s := b.ExpectedCollection.Format(time.RFC3339)
		resp.ExpectedCollection = &s
	}
	return resp
}

func newBookingListResponse(bs []booking.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, newBookingResponse(b))
	}
	return out
}

type agentProfileResponse struct {
	UserID           string `json:"userId"`
	ReferralCode     string `json:"referralCode"`
	TotalCommission  int64  `json:"totalCommission"`
	AvailableBalance int64  `json:"availableBalance"`
	BookingCount     int    `json:"bookingCount"`
}

func newAgentProfileResponse(p role.AgentProfile) agentProfileResponse {
	return agentProfileResponse{
		UserID:           p.UserID,
		ReferralCode:     p.ReferralCode,
		TotalCommission:  p.TotalCommission,
		AvailableBalance: p.AvailableBalance,
		BookingCount:     p.BookingCount,
	}
}

type commissionResponse struct {
	ID        string  `json:"id"`
	AgentID   string  `json:"agentId"`
	BookingID string  `json:"bookingId"`
	Amount    int64   `json:"amount"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
	PaidOutAt *string `json:"paidOutAt,omitempty"`
}

func newCommissionResponse(cm referral.Commission) commissionResponse {
	resp := commissionResponse{
		ID:        cm.ID,
		AgentID:   cm.AgentID,
		BookingID: cm.BookingID,
		Amount:    cm.Amount,
		Status:    string(cm.Status),
		CreatedAt: cm.CreatedAt.Format(time.RFC3339),
	}
	if cm.PaidOutAt != nil {
		s := cm.PaidOutAt.Format(time.RFC3339)
		resp.PaidOutAt = &s
	}
	return resp
}
