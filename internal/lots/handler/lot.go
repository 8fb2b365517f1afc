package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/repository"
	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotHandler handles lot endpoints
type LotHandler struct {
	service *service.LotService
	logger  *logger.Logger
}

// NewLotHandler creates a new lot handler
func NewLotHandler(svc *service.LotService, log *logger.Logger) *LotHandler {
	return &LotHandler{
		service: svc,
		logger:  log,
	}
}

// CreateLotRequest is the body of POST /lots
type CreateLotRequest struct {
	ProductID       string              `json:"product_id" validate:"required,uuid"`
	ProductName     string              `json:"product_name" validate:"required,max=200"`
	ProductCode     string              `json:"product_code" validate:"max=50"`
	BatchNumber     string              `json:"batch_number" validate:"required,max=50"`
	ExpirationDate  string              `json:"expiration_date" validate:"required,datetime=2006-01-02"`
	ManufactureDate string              `json:"manufacture_date" validate:"omitempty,datetime=2006-01-02"`
	InitialQuantity int                 `json:"initial_quantity" validate:"gte=0"`
	CurrentQuantity *int                `json:"current_quantity" validate:"omitempty,gte=0"`
	PurchasePrice   decimal.NullDecimal `json:"purchase_price" validate:"omitempty,gte=0"`
	SalePrice       decimal.NullDecimal `json:"sale_price" validate:"omitempty,gte=0"`
	SupplierName    string              `json:"supplier_name" validate:"max=200"`
}

// AdjustQuantityRequest is the body of PUT /lots/{id}/quantity
type AdjustQuantityRequest struct {
	Quantity *int   `json:"quantity" validate:"required,gte=0"`
	Reason   string `json:"reason" validate:"required,max=200"`
}

// lotID reads the {id} path parameter. Anything that is not a UUID cannot name
// a lot, so it is answered with 404 before reaching the store.
func lotID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, errors.NotFound("lot"))
		return "", false
	}
	return id, true
}

func invalidQuery(param, reason string) *errors.AppError {
	return errors.BadRequest("invalid query parameter").WithDetails(map[string]string{param: reason})
}

// List lists lots with their expiry status
func (h *LotHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	filter := repository.LotFilter{
		Page:      page,
		PerPage:   perPage,
		Search:    strings.TrimSpace(q.Get("search")),
		ProductID: q.Get("product_id"),
	}
	if filter.ProductID != "" {
		if _, err := uuid.Parse(filter.ProductID); err != nil {
			httputil.Error(w, invalidQuery("product_id", "must be a UUID"))
			return
		}
	}

	if status := q.Get("status"); status != "" {
		tier, ok := expiry.ParseTier(status)
		if !ok {
			httputil.Error(w, invalidQuery("status", "unknown status: "+status))
			return
		}
		filter.Tier = tier
	}

	if raw := q.Get("expiring_within_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			httputil.Error(w, invalidQuery("expiring_within_days", "must be a non-negative integer"))
			return
		}
		filter.ExpiringWithinDays = days
	}

	lots, total, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, toLotResponses(lots), httputil.NewMeta(page, perPage, total))
}

// Get gets a lot by ID
func (h *LotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := lotID(w, r)
	if !ok {
		return
	}

	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toLotResponse(lot))
}

// Create receives a new lot into stock
func (h *LotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	expiration, _ := parseDate(req.ExpirationDate)
	manufactured, _ := parseDate(req.ManufactureDate)

	lot, err := h.service.CreateLot(r.Context(), session.FromContext(r.Context()), service.NewLot{
		ProductID:       req.ProductID,
		ProductName:     req.ProductName,
		ProductCode:     req.ProductCode,
		BatchNumber:     req.BatchNumber,
		ExpirationDate:  *expiration,
		ManufactureDate: manufactured,
		InitialQuantity: req.InitialQuantity,
		CurrentQuantity: req.CurrentQuantity,
		PurchasePrice:   req.PurchasePrice,
		SalePrice:       req.SalePrice,
		SupplierName:    req.SupplierName,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, toLotResponse(lot))
}

// AdjustQuantity sets the current stock of a lot
func (h *LotHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req AdjustQuantityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	id, ok := lotID(w, r)
	if !ok {
		return
	}

	movement, err := h.service.AdjustQuantity(r.Context(), session.FromContext(r.Context()),
		id, *req.Quantity, req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movement)
}

// Movements lists the stock history of a lot
func (h *LotHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, ok := lotID(w, r)
	if !ok {
		return
	}

	movements, err := h.service.ListMovements(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, movements)
}

// Expiring lists lots expiring within ?days= (default from config), expired ones first
func (h *LotHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		var err error
		if days, err = strconv.Atoi(raw); err != nil {
			httputil.Error(w, errors.BadRequest("days must be an integer"))
			return
		}
	}

	lots, err := h.service.ExpiringLots(r.Context(), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toLotResponses(lots))
}

// Dashboard returns the expiry summary
func (h *LotHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toSummaryResponse(summary))
}
