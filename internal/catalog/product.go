// Package catalog maps product drafts entered by pharmacy staff into the
// payload accepted by the catalog service.
package catalog

import (
	"github.com/shopspring/decimal"
)

// ProductDraft is a product as entered in the product form
type ProductDraft struct {
	Name              string
	Code              string
	IsRegulated       bool
	BasePurchasePrice decimal.NullDecimal
	VATRate           decimal.NullDecimal
	SalePrice         decimal.NullDecimal
	CategoryID        string
	CategoryName      string
	SupplierID        string
	InitialStock      int
	CreatedBy         string
}

// ProductPayload is the wire shape of a new product.
// Money is rendered as fixed two-place strings.
type ProductPayload struct {
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	IsRegulated        bool    `json:"is_regulated"`
	BasePurchasePrice  *string `json:"base_purchase_price"`
	VATRate            *string `json:"vat_rate"`
	SalePrice          *string `json:"sale_price"`
	SuggestedSalePrice *string `json:"suggested_sale_price"`
	CategoryID         *string `json:"category_id,omitempty"`
	CategoryName       *string `json:"category_name,omitempty"`
	SupplierID         *string `json:"supplier_id,omitempty"`
	Stock              int     `json:"stock"`
	CreatedBy          string  `json:"created_by"`
}

// ToWire builds the payload for a draft. The entered sale price always wins;
// suggested only fills sale_price when none was entered.
func ToWire(d ProductDraft, suggested decimal.NullDecimal) ProductPayload {
	sale := d.SalePrice
	if !sale.Valid {
		sale = suggested
	}

	return ProductPayload{
		Name:               d.Name,
		Code:               d.Code,
		IsRegulated:        d.IsRegulated,
		BasePurchasePrice:  money(d.BasePurchasePrice),
		VATRate:            money(d.VATRate),
		SalePrice:          money(sale),
		SuggestedSalePrice: money(suggested),
		CategoryID:         optional(d.CategoryID),
		CategoryName:       optional(d.CategoryName),
		SupplierID:         optional(d.SupplierID),
		Stock:              d.InitialStock,
		CreatedBy:          d.CreatedBy,
	}
}

func money(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
