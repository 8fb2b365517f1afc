package expiry

import "github.com/shopspring/decimal"

// Margin policy, in percent
const (
	RegulatedMarginPct = 25
	StandardMarginPct  = 30
	DefaultVATRatePct  = 21
)

var hundred = decimal.NewFromInt(100)

// PricingInput feeds SuggestSalePrice. A null or negative VATRate falls back
// to DefaultVATRatePct; an explicit zero is honoured.
type PricingInput struct {
	BasePurchasePrice  decimal.NullDecimal
	IsRegulatedProduct bool
	VATRate            decimal.NullDecimal
}

// SuggestSalePrice applies the margin policy and VAT to the purchase price and
// rounds half-up to cents. ok is false when the base price is missing or not
// positive; callers must then show no suggestion at all.
func SuggestSalePrice(in PricingInput) (price decimal.Decimal, ok bool) {
	if !in.BasePurchasePrice.Valid || !in.BasePurchasePrice.Decimal.IsPositive() {
		return decimal.Zero, false
	}

	margin := decimal.NewFromInt(StandardMarginPct)
	if in.IsRegulatedProduct {
		margin = decimal.NewFromInt(RegulatedMarginPct)
	}

	vat := decimal.NewFromInt(DefaultVATRatePct)
	if in.VATRate.Valid && !in.VATRate.Decimal.IsNegative() {
		vat = in.VATRate.Decimal
	}

	withMargin := in.BasePurchasePrice.Decimal.Mul(decimal.NewFromInt(1).Add(margin.Div(hundred)))
	final := withMargin.Mul(decimal.NewFromInt(1).Add(vat.Div(hundred)))

	// Round is half away from zero, which is half-up for positive prices
	return final.Round(2), true
}
