package product

import "time"

// Category classifies a live bird by growth stage.
type Category string

const (
	CategoryChick  Category = "chick"
	CategoryGrower Category = "grower"
	CategoryMature Category = "mature"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryChick, CategoryGrower, CategoryMature:
		return true
	}
	return false
}

// Product is the domain representation of an orderable bird type.
// Prices and fees are integer amounts in the smallest practical unit.
type Product struct {
	ID                string
	Name              string
	Category          Category
	UnitPrice         int64
	BookingFeePerUnit int64
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
