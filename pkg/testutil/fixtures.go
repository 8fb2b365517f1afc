package testutil

import (
	"fmt"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FixtureFactory builds lots with unique identifiers relative to a reference date
type FixtureFactory struct {
	Reference time.Time
	sequence  int
}

// NewFixtureFactory creates a factory whose lots are dated relative to reference
func NewFixtureFactory(reference time.Time) *FixtureFactory {
	return &FixtureFactory{Reference: reference}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Lot creates a lot expiring daysRemaining days after the reference date,
// with 10 of 20 units in stock priced at 2.00 cost and 3.50 sale.
func (f *FixtureFactory) Lot(daysRemaining int, opts ...func(*expiry.Lot)) expiry.Lot {
	seq := f.nextSeq()
	y, m, d := f.Reference.Date()

	lot := expiry.Lot{
		ID:              uuid.New().String(),
		ProductID:       uuid.New().String(),
		ProductName:     fmt.Sprintf("Product %d", seq),
		ProductCode:     fmt.Sprintf("CN%06d", seq),
		BatchNumber:     fmt.Sprintf("B-%04d", seq),
		ExpirationDate:  time.Date(y, m, d+daysRemaining, 0, 0, 0, 0, time.UTC),
		InitialQuantity: 20,
		CurrentQuantity: 10,
		PurchasePrice:   decimal.NewNullDecimal(decimal.RequireFromString("2.00")),
		SalePrice:       decimal.NewNullDecimal(decimal.RequireFromString("3.50")),
		SupplierName:    "Cofares",
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithQuantity sets the current stock
func WithQuantity(qty int) func(*expiry.Lot) {
	return func(l *expiry.Lot) {
		l.CurrentQuantity = qty
	}
}

// WithSalePrice sets the sale price; an empty string clears it
func WithSalePrice(price string) func(*expiry.Lot) {
	return func(l *expiry.Lot) {
		l.SalePrice = nullDecimal(price)
	}
}

// WithPurchasePrice sets the purchase price; an empty string clears it
func WithPurchasePrice(price string) func(*expiry.Lot) {
	return func(l *expiry.Lot) {
		l.PurchasePrice = nullDecimal(price)
	}
}

// WithProduct sets the product identity
func WithProduct(id, name string) func(*expiry.Lot) {
	return func(l *expiry.Lot) {
		l.ProductID = id
		l.ProductName = name
	}
}

func nullDecimal(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
