package server

import (
	"context"

	"go.uber.org/zap"

	"poultryflow/auth"
	"poultryflow/booking"
	"poultryflow/product"
	"poultryflow/referral"
	"poultryflow/role"
)

// AuthService is the subset of the auth service the HTTP layer uses.
type AuthService interface {
	TokenVerifier
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
}

// ProductService exposes catalog reads and staff-side product creation.
type ProductService interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
	ListActive(ctx context.Context, limit int) ([]product.Product, error)
	Create(ctx context.Context, params product.CreateParams) (product.Product, error)
}

// BookingService covers the booking lifecycle operations.
type BookingService interface {
	Create(ctx context.Context, params booking.CreateParams) (booking.Booking, error)
	Transition(ctx context.Context, params booking.TransitionParams) (booking.Booking, error)
	Get(ctx context.Context, bookingID, actorID string, actorRole auth.Role) (booking.Booking, error)
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]booking.Booking, error)
	LookupByPhone(ctx context.Context, phone string, actorRole auth.Role) ([]booking.Booking, error)
}

// RoleService covers staff role assignment and agent profile reads.
type RoleService interface {
	ChangeRole(ctx context.Context, params role.ChangeRoleParams) error
	GetAgentProfile(ctx context.Context, userID string) (role.AgentProfile, error)
}

// ReferralService covers the commission ledger operations.
type ReferralService interface {
	Resolve(ctx context.Context, code string) (role.AgentProfile, error)
	Credit(ctx context.Context, bookingID string) error
	MarkPaidOut(ctx context.Context, commissionID string) error
	ListForAgent(ctx context.Context, agentID string, limit int) ([]referral.Commission, error)
}

// Server groups the HTTP handlers and their service dependencies.
type Server struct {
	authService     AuthService
	productService  ProductService
	bookingService  BookingService
	roleService     RoleService
	referralService ReferralService
	logger          *zap.Logger
}

// New creates a Server. A nil logger disables request logging.
func New(authSvc AuthService, productSvc ProductService, bookingSvc BookingService, roleSvc RoleService, referralSvc ReferralService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		authService:     authSvc,
		productService:  productSvc,
		bookingService:  bookingSvc,
		roleService:     roleSvc,
		referralService: referralSvc,
		logger:          logger,
	}
}
