package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/repository"
	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/farmaflow/farmaflow-backend/pkg/config"
	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/farmaflow/farmaflow-backend/pkg/session"
	"github.com/farmaflow/farmaflow-backend/pkg/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reference = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type memoryLots struct {
	rows      []*repository.LotRow
	movements []*repository.Movement
	lastList  repository.LotFilter
}

func (m *memoryLots) Create(ctx context.Context, lot *repository.LotRow) error {
	for _, r := range m.rows {
		if r.ProductID == lot.ProductID && r.BatchNumber == lot.BatchNumber {
			return errors.Conflict("a lot with this batch number already exists for the product")
		}
	}
	lot.ID = "lot-new"
	m.rows = append(m.rows, lot)
	return nil
}

func (m *memoryLots) GetByID(ctx context.Context, id string) (*repository.LotRow, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NotFound("lot")
}

func (m *memoryLots) List(ctx context.Context, f repository.LotFilter) ([]*repository.LotRow, int64, error) {
	m.lastList = f
	end := f.PerPage
	if end > len(m.rows) {
		end = len(m.rows)
	}
	return m.rows[:end], int64(len(m.rows)), nil
}

func (m *memoryLots) ListExpiring(ctx context.Context, withinDays int, ref time.Time) ([]*repository.LotRow, error) {
	var out []*repository.LotRow
	for _, r := range m.rows {
		if expiry.DaysRemaining(r.ExpirationDate, ref) <= withinDays {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryLots) AdjustQuantity(ctx context.Context, mv *repository.Movement) error {
	row, err := m.GetByID(ctx, mv.LotID)
	if err != nil {
		return err
	}
	mv.PreviousQuantity = row.CurrentQuantity
	row.CurrentQuantity = mv.NewQuantity
	m.movements = append(m.movements, mv)
	return nil
}

func (m *memoryLots) ListMovements(ctx context.Context, lotID string) ([]*repository.Movement, error) {
	return m.movements, nil
}

func (m *memoryLots) UpdateSalePriceByProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error) {
	return 0, nil
}

type memoryLosses struct {
	records []expiry.LossRecord
	expired []*repository.LotRow
}

func (m *memoryLosses) MonthlyLosses(ctx context.Context, rng repository.LossRange) ([]expiry.LossRecord, error) {
	return m.records, nil
}

func (m *memoryLosses) ExpiredLots(ctx context.Context, rng repository.LossRange) ([]*repository.LotRow, error) {
	return m.expired, nil
}

type apiResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
	Meta    *httputil.Meta      `json:"meta"`
}

type testAPI struct {
	router http.Handler
	lots   *memoryLots
	losses *memoryLosses
	fx     *testutil.FixtureFactory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	lots := &memoryLots{}
	losses := &memoryLosses{}

	svc := service.NewLotService(lots, losses, nil,
		service.NewSnapshot(time.Minute, time.Hour),
		config.ExpiryConfig{LookaheadDays: 30, DefaultVATRate: 21},
		func() time.Time { return reference }, nil)

	r := chi.NewRouter()
	r.Use(httputil.Authenticate(session.NewVerifier(testutil.TestJWTSecret, "")))
	Mount(r, NewLotHandler(svc, nil), NewLossHandler(svc, nil), NewPricingHandler(svc, nil))

	return &testAPI{router: r, lots: lots, losses: losses, fx: testutil.NewFixtureFactory(reference)}
}

func (a *testAPI) seed(lots ...expiry.Lot) {
	for _, l := range lots {
		supplier := l.SupplierName
		a.lots.rows = append(a.lots.rows, &repository.LotRow{
			ID: l.ID, ProductID: l.ProductID, ProductName: l.ProductName, ProductCode: l.ProductCode,
			BatchNumber: l.BatchNumber, ExpirationDate: l.ExpirationDate,
			InitialQuantity: l.InitialQuantity, CurrentQuantity: l.CurrentQuantity,
			PurchasePrice: l.PurchasePrice, SalePrice: l.SalePrice, SupplierName: &supplier,
		})
	}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, perms ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := testutil.WithBearer(testutil.NewHTTPRequest(method, path, body), testutil.BearerToken(t, "u-1", perms...))
	rr := testutil.ExecuteRequest(a.router, req)

	var resp apiResponse
	if rr.Code != http.StatusNoContent {
		testutil.ParseJSONBody(t, rr, &resp)
	}
	return rr, resp
}

func TestRoutes_Permissions(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		perms  []string
		want   int
	}{
		{"read with lots.read", http.MethodGet, "/lots", []string{"lots.read"}, http.StatusOK},
		{"read with wildcard", http.MethodGet, "/lots/dashboard", []string{"lots.*"}, http.StatusOK},
		{"read with admin", http.MethodGet, "/losses", []string{"*"}, http.StatusOK},
		{"write needs lots.write", http.MethodPost, "/lots", []string{"lots.read"}, http.StatusForbidden},
		{"losses needs losses.read", http.MethodGet, "/losses", []string{"lots.read"}, http.StatusForbidden},
		{"pricing needs pricing.read", http.MethodPost, "/pricing/suggest", []string{"lots.*"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := api.do(t, tt.method, tt.path, nil, tt.perms...)
			testutil.AssertStatus(t, rr, tt.want)
		})
	}

	t.Run("missing token", func(t *testing.T) {
		rr := testutil.ExecuteRequest(api.router, testutil.NewHTTPRequest(http.MethodGet, "/lots", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestLotHandler_List(t *testing.T) {
	api := newTestAPI(t)
	api.seed(api.fx.Lot(-1), api.fx.Lot(3, testutil.WithQuantity(0)), api.fx.Lot(90))

	rr, resp := api.do(t, http.MethodGet, "/lots?page=1&per_page=2&search=%20amox%20&status=critical", nil, "lots.read")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var lots []LotResponse
	require.NoError(t, json.Unmarshal(resp.Data, &lots))
	require.Len(t, lots, 2)
	assert.Equal(t, "EXPIRED", lots[0].Status)
	assert.Equal(t, "CRITICAL", lots[1].Tier)
	assert.Equal(t, "DEPLETED", lots[1].Status)
	assert.Equal(t, "0.00", lots[1].StockValue)
	assert.Equal(t, int64(3), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	assert.Equal(t, "amox", api.lots.lastList.Search)
	assert.Equal(t, expiry.TierCritical, api.lots.lastList.Tier)

	t.Run("bad status", func(t *testing.T) {
		rr, resp := api.do(t, http.MethodGet, "/lots?status=soon", nil, "lots.read")
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
		assert.Contains(t, resp.Error.Details, "status")
	})

	t.Run("negative window", func(t *testing.T) {
		rr, resp := api.do(t, http.MethodGet, "/lots?expiring_within_days=-3", nil, "lots.read")
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Contains(t, resp.Error.Details, "expiring_within_days")
	})

	t.Run("per_page clamped", func(t *testing.T) {
		_, resp := api.do(t, http.MethodGet, "/lots?per_page=500", nil, "lots.read")
		assert.Equal(t, 20, resp.Meta.PerPage)
	})
}

func TestLotHandler_Get(t *testing.T) {
	api := newTestAPI(t)
	lot := api.fx.Lot(12)
	api.seed(lot)

	rr, resp := api.do(t, http.MethodGet, "/lots/"+lot.ID, nil, "lots.read")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var got LotResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, 12, got.DaysRemaining)
	assert.Equal(t, "UPCOMING", got.Tier)
	assert.Equal(t, "3.50", *got.SalePrice)
	assert.Equal(t, "Cofares", got.SupplierName)

	rr, _ = api.do(t, http.MethodGet, "/lots/unknown", nil, "lots.read")
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestLotHandler_Create(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		want      int
		wantField string
	}{
		{
			name: "valid",
			body: `{"product_id":"6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41","product_name":"Ibuprofeno 600","batch_number":"B-9","expiration_date":"2024-05-15","initial_quantity":20,"purchase_price":"2.10","sale_price":"3.95"}`,
			want: http.StatusCreated,
		},
		{
			name:      "missing batch",
			body:      `{"product_id":"6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41","product_name":"x","expiration_date":"2024-05-15","initial_quantity":1}`,
			want:      http.StatusBadRequest,
			wantField: "batch_number",
		},
		{
			name:      "bad date",
			body:      `{"product_id":"6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41","product_name":"x","batch_number":"B","expiration_date":"15/05/2024","initial_quantity":1}`,
			want:      http.StatusBadRequest,
			wantField: "expiration_date",
		},
		{
			name:      "negative price",
			body:      `{"product_id":"6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41","product_name":"x","batch_number":"B","expiration_date":"2024-05-15","initial_quantity":1,"sale_price":"-1"}`,
			want:      http.StatusBadRequest,
			wantField: "sale_price",
		},
		{
			name:      "current above initial",
			body:      `{"product_id":"6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41","product_name":"x","batch_number":"B","expiration_date":"2024-05-15","initial_quantity":1,"current_quantity":2}`,
			want:      http.StatusBadRequest,
			wantField: "current_quantity",
		},
		{
			name:      "product id not a uuid",
			body:      `{"product_id":"p-1","product_name":"x","batch_number":"B","expiration_date":"2024-05-15","initial_quantity":1}`,
			want:      http.StatusBadRequest,
			wantField: "product_id",
		},
		{
			name: "malformed",
			body: `{"product_id":`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			req := httptest.NewRequest(http.MethodPost, "/lots", strings.NewReader(tt.body))
			testutil.WithBearer(req, testutil.BearerToken(t, "u-1", "lots.write"))
			rr := testutil.ExecuteRequest(api.router, req)
			testutil.AssertStatus(t, rr, tt.want)

			var resp apiResponse
			testutil.ParseJSONBody(t, rr, &resp)
			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Details, tt.wantField)
			}
			if tt.want == http.StatusCreated {
				var got LotResponse
				require.NoError(t, json.Unmarshal(resp.Data, &got))
				assert.Equal(t, "CRITICAL", got.Tier)
				assert.Equal(t, 20, got.CurrentQuantity)
				assert.Equal(t, "79.00", got.StockValue)
			}
		})
	}
}

func TestLotHandler_Create_DuplicateBatch(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]interface{}{
		"product_id": "6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b8c41", "product_name": "x", "batch_number": "B", "expiration_date": "2025-01-01", "initial_quantity": 1,
	}

	rr, _ := api.do(t, http.MethodPost, "/lots", body, "lots.write")
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr, resp := api.do(t, http.MethodPost, "/lots", body, "lots.write")
	testutil.AssertStatus(t, rr, http.StatusConflict)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestLotHandler_AdjustQuantity(t *testing.T) {
	api := newTestAPI(t)
	lot := api.fx.Lot(5)
	api.seed(lot)

	rr, _ := api.do(t, http.MethodPut, "/lots/"+lot.ID+"/quantity", map[string]interface{}{"reason": "sale"}, "lots.write")
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr, resp := api.do(t, http.MethodPut, "/lots/"+lot.ID+"/quantity", map[string]interface{}{"quantity": 0, "reason": "breakage"}, "lots.write")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var movement repository.Movement
	require.NoError(t, json.Unmarshal(resp.Data, &movement))
	assert.Equal(t, 10, movement.PreviousQuantity)
	assert.Equal(t, 0, movement.NewQuantity)
	assert.Equal(t, "u-1", movement.PerformedBy)
	assert.Equal(t, "Test u-1", *movement.PerformedByName)

	rr, resp = api.do(t, http.MethodGet, "/lots/"+lot.ID+"/movements", nil, "lots.read")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var movements []repository.Movement
	require.NoError(t, json.Unmarshal(resp.Data, &movements))
	assert.Len(t, movements, 1)
}

func TestLotHandler_MalformedIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		perm   string
		want   int
	}{
		{"get", http.MethodGet, "/lots/abc", nil, "lots.read", http.StatusNotFound},
		{"movements", http.MethodGet, "/lots/abc/movements", nil, "lots.read", http.StatusNotFound},
		{"adjust", http.MethodPut, "/lots/abc/quantity", map[string]interface{}{"quantity": 1, "reason": "count"}, "lots.write", http.StatusNotFound},
		{"list by product", http.MethodGet, "/lots?product_id=abc", nil, "lots.read", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			rr, _ := api.do(t, tt.method, tt.path, tt.body, tt.perm)
			testutil.AssertStatus(t, rr, tt.want)
		})
	}
}

func TestLotHandler_Expiring(t *testing.T) {
	api := newTestAPI(t)
	api.seed(api.fx.Lot(-4), api.fx.Lot(20), api.fx.Lot(60))

	tests := []struct {
		query string
		want  int
		count int
	}{
		{"", http.StatusOK, 2},
		{"?days=90", http.StatusOK, 3},
		{"?days=0", http.StatusOK, 2},
		{"?days=400", http.StatusBadRequest, 0},
		{"?days=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run("days"+tt.query, func(t *testing.T) {
			rr, resp := api.do(t, http.MethodGet, "/lots/expiring"+tt.query, nil, "lots.read")
			testutil.AssertStatus(t, rr, tt.want)
			if tt.want != http.StatusOK {
				return
			}
			var lots []LotResponse
			require.NoError(t, json.Unmarshal(resp.Data, &lots))
			assert.Len(t, lots, tt.count)
		})
	}
}

func TestLotHandler_Dashboard(t *testing.T) {
	api := newTestAPI(t)
	api.seed(
		api.fx.Lot(-1),
		api.fx.Lot(0, testutil.WithSalePrice("")),
		api.fx.Lot(7),
		api.fx.Lot(8, testutil.WithSalePrice("1.005")),
		api.fx.Lot(31),
	)

	rr, resp := api.do(t, http.MethodGet, "/lots/dashboard", nil, "lots.read")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var got SummaryResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "2024-05-10", got.ReferenceDate)
	assert.Equal(t, SummaryCounts{Expired: 1, Critical: 2, Upcoming: 1, AtRisk: 4}, got.Counts)
	// 35 + 0 + 35 + 10.05
	assert.Equal(t, "80.05", got.TotalValueAtRisk)
	assert.Equal(t, "35.00", got.TotalExpiredValue)
	assert.Nil(t, got.Critical[0].SalePrice)
}

func TestLossHandler_Report(t *testing.T) {
	api := newTestAPI(t)
	api.losses.records = []expiry.LossRecord{{
		ExpirationMonth:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpiredLotCount:      2,
		ExpiredUnitCount:     9,
		TotalLoss:            decimal.RequireFromString("18.125"),
		AffectedProductCount: 2,
		ProductList:          []string{"Amoxicilina", "Ibuprofeno"},
	}}
	api.losses.expired = []*repository.LotRow{{ID: "lot-x", ProductName: "Amoxicilina", ExpirationDate: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), CurrentQuantity: 4}}

	rr, resp := api.do(t, http.MethodGet, "/losses?from=2024-01-01&to=2024-04-30&detail=true", nil, "losses.read")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var got LossReportResponse
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	require.Len(t, got.Months, 1)
	assert.Equal(t, "2024-03", got.Months[0].ExpirationMonth)
	assert.Equal(t, "18.13", got.Months[0].TotalLoss)
	assert.Equal(t, "18.13", got.TotalLoss)
	assert.Equal(t, 1, got.MonthsWithLoss)
	require.Len(t, got.Lots, 1)
	assert.Equal(t, 69, got.Lots[0].DaysExpired)
	assert.Equal(t, "0.00", got.Lots[0].EconomicLoss)

	bad := []string{"?from=01-01-2024", "?to=tomorrow", "?detail=maybe", "?from=2024-05-01&to=2024-04-01"}
	for _, q := range bad {
		rr, _ := api.do(t, http.MethodGet, "/losses"+q, nil, "losses.read")
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	}
}

func TestPricingHandler_Suggest(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body string
		want *string
	}{
		{"standard", `{"base_purchase_price":"100","is_regulated_product":false,"vat_rate":"21"}`, strPtr("157.30")},
		{"regulated", `{"base_purchase_price":"100","is_regulated_product":true,"vat_rate":"21"}`, strPtr("151.25")},
		{"default vat", `{"base_purchase_price":"100"}`, strPtr("157.30")},
		{"zero vat", `{"base_purchase_price":"10","vat_rate":"0"}`, strPtr("13.00")},
		{"no base price", `{"vat_rate":"21"}`, nil},
		{"zero base price", `{"base_purchase_price":"0"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pricing/suggest", strings.NewReader(tt.body))
			testutil.WithBearer(req, testutil.BearerToken(t, "u-1", "pricing.read"))
			rr := testutil.ExecuteRequest(api.router, req)
			testutil.AssertStatus(t, rr, http.StatusOK)

			var resp apiResponse
			testutil.ParseJSONBody(t, rr, &resp)
			var got SuggestPriceResponse
			require.NoError(t, json.Unmarshal(resp.Data, &got))
			assert.Equal(t, tt.want, got.SuggestedSalePrice)
			assert.Contains(t, string(resp.Data), "suggested_sale_price")
		})
	}
}

func TestPricingHandler_Suggest_RejectsOutOfRangeVAT(t *testing.T) {
	api := newTestAPI(t)

	for _, vat := range []string{"-50", "101"} {
		t.Run(vat, func(t *testing.T) {
			rr, resp := api.do(t, http.MethodPost, "/pricing/suggest", map[string]interface{}{
				"base_purchase_price": "100", "vat_rate": vat,
			}, "pricing.read")
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			assert.Contains(t, resp.Error.Details, "vat_rate")

			rr, _ = api.do(t, http.MethodPost, "/products/preview", map[string]interface{}{
				"name": "Omeprazol 20", "base_purchase_price": "100", "vat_rate": vat,
			}, "pricing.read")
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestPricingHandler_PreviewProduct(t *testing.T) {
	api := newTestAPI(t)

	rr, resp := api.do(t, http.MethodPost, "/products/preview", map[string]interface{}{
		"name": "Omeprazol 20", "code": "CN1", "is_regulated": true, "base_purchase_price": "4", "initial_stock": 30,
	}, "pricing.read")
	testutil.AssertStatus(t, rr, http.StatusOK)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "6.05", got["sale_price"])
	assert.Equal(t, "6.05", got["suggested_sale_price"])
	assert.Equal(t, "u-1", got["created_by"])

	rr, resp = api.do(t, http.MethodPost, "/products/preview", map[string]interface{}{
		"name": "Omeprazol 20", "base_purchase_price": "4", "sale_price": "5.99",
	}, "pricing.read")
	testutil.AssertStatus(t, rr, http.StatusOK)
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "5.99", got["sale_price"])
	assert.Equal(t, "6.29", got["suggested_sale_price"])

	rr, _ = api.do(t, http.MethodPost, "/products/preview", map[string]interface{}{"code": "x"}, "pricing.read")
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func strPtr(s string) *string { return &s }
