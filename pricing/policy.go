package pricing

import (
	"poultryflow/config"
	"poultryflow/product"
)

// Policy carries the booking fee and commission constants. The flat chick rate
// subsidizes small orders; everything else pays the per-unit fee. All amounts
// are integers in the currency's smallest practical unit.
type Policy struct {
	ChickFlatFee    int64
	ChickFlatMaxQty int

	CommissionLowMax      int64
	CommissionLowAmount   int64
	CommissionMidMax      int64
	CommissionMidAmount   int64
	CommissionRatePercent int64
}

// DefaultPolicy returns the production constants.
func DefaultPolicy() Policy {
	return Policy{
		ChickFlatFee:          300,
		ChickFlatMaxQty:       8,
		CommissionLowMax:      500,
		CommissionLowAmount:   200,
		CommissionMidMax:      1000,
		CommissionMidAmount:   350,
		CommissionRatePercent: 10,
	}
}

// PolicyFromConfig maps the configured pricing constants onto a Policy.
func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		ChickFlatFee:          cfg.ChickFlatFee,
		ChickFlatMaxQty:       cfg.ChickFlatMaxQty,
		CommissionLowMax:      cfg.CommissionLowMax,
		CommissionLowAmount:   cfg.CommissionLowAmount,
		CommissionMidMax:      cfg.CommissionMidMax,
		CommissionMidAmount:   cfg.CommissionMidAmount,
		CommissionRatePercent: cfg.CommissionRatePercent,
	}
}

// BookingFee computes the non-refundable reservation fee for an order.
// It never fails: a non-positive quantity or zero-valued product yields 0.
func (p Policy) BookingFee(category product.Category, feePerUnit int64, quantity int) int64 {
	if quantity <= 0 {
		return 0
	}
	if category == product.CategoryChick && quantity <= p.ChickFlatMaxQty {
		return p.ChickFlatFee
	}
	return feePerUnit * int64(quantity)
}

// Commission computes the agent commission owed for a booking fee.
// Tier boundaries are inclusive on the lower tier: a fee of exactly
// CommissionLowMax pays the low amount, and exactly CommissionMidMax pays the
// mid amount. Above that the percentage applies, floored to an integer.
func (p Policy) Commission(bookingFee int64) int64 {
	if bookingFee <= 0 {
		return 0
	}
	if bookingFee <= p.CommissionLowMax {
		return p.CommissionLowAmount
	}
	if bookingFee <= p.CommissionMidMax {
		return p.CommissionMidAmount
	}
	return bookingFee * p.CommissionRatePercent / 100
}
