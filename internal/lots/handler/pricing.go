package handler

import (
	"net/http"

	"github.com/farmaflow/farmaflow-backend/internal/catalog"
	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/session"
	"github.com/shopspring/decimal"
)

// PricingHandler handles sale price suggestions and product previews
type PricingHandler struct {
	service *service.LotService
	logger  *logger.Logger
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(svc *service.LotService, log *logger.Logger) *PricingHandler {
	return &PricingHandler{
		service: svc,
		logger:  log,
	}
}

// SuggestPriceRequest is the body of POST /pricing/suggest
type SuggestPriceRequest struct {
	BasePurchasePrice  decimal.NullDecimal `json:"base_purchase_price"`
	IsRegulatedProduct bool                `json:"is_regulated_product"`
	VATRate            decimal.NullDecimal `json:"vat_rate" validate:"omitempty,gte=0,lte=100"`
}

// SuggestPriceResponse carries a null price when there is no suggestion
type SuggestPriceResponse struct {
	SuggestedSalePrice *string `json:"suggested_sale_price"`
}

// ProductPreviewRequest is the body of POST /products/preview
type ProductPreviewRequest struct {
	Name              string              `json:"name" validate:"required,max=200"`
	Code              string              `json:"code" validate:"max=50"`
	IsRegulated       bool                `json:"is_regulated"`
	BasePurchasePrice decimal.NullDecimal `json:"base_purchase_price" validate:"omitempty,gte=0"`
	VATRate           decimal.NullDecimal `json:"vat_rate" validate:"omitempty,gte=0,lte=100"`
	SalePrice         decimal.NullDecimal `json:"sale_price" validate:"omitempty,gte=0"`
	CategoryID        string              `json:"category_id"`
	CategoryName      string              `json:"category_name"`
	SupplierID        string              `json:"supplier_id"`
	InitialStock      int                 `json:"initial_stock" validate:"gte=0"`
}

func (h *PricingHandler) suggest(base decimal.NullDecimal, regulated bool, vat decimal.NullDecimal) decimal.NullDecimal {
	price, ok := h.service.SuggestPrice(expiry.PricingInput{
		BasePurchasePrice:  base,
		IsRegulatedProduct: regulated,
		VATRate:            vat,
	})
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price)
}

// Suggest computes the suggested sale price for a purchase price
func (h *PricingHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestPriceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	suggested := h.suggest(req.BasePurchasePrice, req.IsRegulatedProduct, req.VATRate)
	httputil.JSON(w, http.StatusOK, SuggestPriceResponse{SuggestedSalePrice: nullMoney(suggested)})
}

// PreviewProduct builds the catalog payload for a product form
func (h *PricingHandler) PreviewProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductPreviewRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	draft := catalog.ProductDraft{
		Name:              req.Name,
		Code:              req.Code,
		IsRegulated:       req.IsRegulated,
		BasePurchasePrice: req.BasePurchasePrice,
		VATRate:           req.VATRate,
		SalePrice:         req.SalePrice,
		CategoryID:        req.CategoryID,
		CategoryName:      req.CategoryName,
		SupplierID:        req.SupplierID,
		InitialStock:      req.InitialStock,
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		draft.CreatedBy = sess.UserID
	}

	suggested := h.suggest(req.BasePurchasePrice, req.IsRegulated, req.VATRate)
	httputil.JSON(w, http.StatusOK, catalog.ToWire(draft, suggested))
}
