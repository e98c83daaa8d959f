package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no product row exists for the identifier.
	ErrNotFound = errors.New("product: not found")
)

// Repository handles data access for products.
type Repository interface {
	GetByID(ctx context.Context, id string) (Product, error)
	ListActive(ctx context.Context, limit int) ([]Product, error)
	Create(ctx context.Context, params CreateParams) (Product, error)
}

// CreateParams contains write parameters for creating products.
type CreateParams struct {
	Name              string
	Category          Category
	UnitPrice         int64
	BookingFeePerUnit int64
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed product repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const productColumns = `id, name, category::text, unit_price, booking_fee_per_unit, active, created_at, updated_at`

func (r *PGRepository) GetByID(ctx context.Context, id string) (Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("product: get by id: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListActive(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE active ORDER BY name LIMIT $1`, productColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("product: list active: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, limit)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.UnitPrice, &p.BookingFeePerUnit, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("product: scan: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("product: iterate: %w", err)
	}
	return products, nil
}

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Product, error) {
	query := fmt.Sprintf(`
		INSERT INTO products (name, category, unit_price, booking_fee_per_unit)
		VALUES ($1, $2::product_category, $3, $4)
		RETURNING %s`, productColumns)

	p, err := scanProduct(r.pool.QueryRow(ctx, query, params.Name, params.Category, params.UnitPrice, params.BookingFeePerUnit))
	if err != nil {
		return Product{}, fmt.Errorf("product: create: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.UnitPrice,
		&p.BookingFeePerUnit,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
