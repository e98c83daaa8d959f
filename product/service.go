package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidProduct signals rejected product parameters.
var ErrInvalidProduct = errors.New("product: invalid parameters")

// Service exposes business-level product operations.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID returns the product for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive returns up to limit products currently open for booking.
func (s *Service) ListActive(ctx context.Context, limit int) ([]Product, error) {
	return s.repo.ListActive(ctx, limit)
}

// Create registers a new product in the catalog.
func (s *Service) Create(ctx context.Context, params CreateParams) (Product, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return Product{}, fmt.Errorf("%w: name required", ErrInvalidProduct)
	}
	if !params.Category.Valid() {
		return Product{}, fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, params.Category)
	}
	if params.UnitPrice < 0 || params.BookingFeePerUnit < 0 {
		return Product{}, fmt.Errorf("%w: negative amounts", ErrInvalidProduct)
	}
	return s.repo.Create(ctx, params)
}
