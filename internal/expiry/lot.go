package expiry

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a tracked batch of a product with its own expiration date and stock
type Lot struct {
	ID              string
	ProductID       string
	ProductName     string
	ProductCode     string
	BatchNumber     string
	ExpirationDate  time.Time
	ManufactureDate *time.Time
	InitialQuantity int
	// CurrentQuantity is expected to stay <= InitialQuantity; not enforced here
	CurrentQuantity int
	PurchasePrice   decimal.NullDecimal
	SalePrice       decimal.NullDecimal
	SupplierName    string
}

// Depleted reports whether the lot has no stock left
func (l Lot) Depleted() bool {
	return l.CurrentQuantity == 0
}

// StockValue is CurrentQuantity * SalePrice, or zero when either is missing or negative
func (l Lot) StockValue() decimal.Decimal {
	return extend(l.CurrentQuantity, l.SalePrice)
}

// CostValue is CurrentQuantity * PurchasePrice, or zero when either is missing or negative
func (l Lot) CostValue() decimal.Decimal {
	return extend(l.CurrentQuantity, l.PurchasePrice)
}

func extend(quantity int, price decimal.NullDecimal) decimal.Decimal {
	if quantity <= 0 || !price.Valid || price.Decimal.IsNegative() {
		return decimal.Zero
	}
	return price.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
}

// Assessment is a lot together with its date-based classification.
// Tier always reflects the date; Depleted is kept separately so a sold-out
// lot does not hide how urgent its date is.
type Assessment struct {
	Lot           Lot
	DaysRemaining int
	Tier          Tier
	Depleted      bool
}

// DisplayTier is DEPLETED for sold-out lots, otherwise the date tier
func (a Assessment) DisplayTier() Tier {
	if a.Depleted {
		return TierDepleted
	}
	return a.Tier
}
