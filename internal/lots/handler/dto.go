package handler

import (
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Money leaves the service as fixed two-place strings; locale formatting is the client's job.

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func nullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

// LotResponse is a lot with its expiry classification
type LotResponse struct {
	ID              string  `json:"id"`
	ProductID       string  `json:"product_id"`
	ProductName     string  `json:"product_name"`
	ProductCode     string  `json:"product_code"`
	BatchNumber     string  `json:"batch_number"`
	ExpirationDate  string  `json:"expiration_date"`
	ManufactureDate *string `json:"manufacture_date,omitempty"`
	InitialQuantity int     `json:"initial_quantity"`
	CurrentQuantity int     `json:"current_quantity"`
	PurchasePrice   *string `json:"purchase_price"`
	SalePrice       *string `json:"sale_price"`
	StockValue      string  `json:"stock_value"`
	SupplierName    string  `json:"supplier_name,omitempty"`
	DaysRemaining   int     `json:"days_remaining"`
	Tier            string  `json:"tier"`
	Status          string  `json:"status"`
	Depleted        bool    `json:"depleted"`
}

func toLotResponse(a expiry.Assessment) LotResponse {
	l := a.Lot
	resp := LotResponse{
		ID:              l.ID,
		ProductID:       l.ProductID,
		ProductName:     l.ProductName,
		ProductCode:     l.ProductCode,
		BatchNumber:     l.BatchNumber,
		ExpirationDate:  l.ExpirationDate.Format(dateLayout),
		InitialQuantity: l.InitialQuantity,
		CurrentQuantity: l.CurrentQuantity,
		PurchasePrice:   nullMoney(l.PurchasePrice),
		SalePrice:       nullMoney(l.SalePrice),
		StockValue:      money(l.StockValue()),
		SupplierName:    l.SupplierName,
		DaysRemaining:   a.DaysRemaining,
		Tier:            string(a.Tier),
		Status:          string(a.DisplayTier()),
		Depleted:        a.Depleted,
	}
	if l.ManufactureDate != nil {
		s := l.ManufactureDate.Format(dateLayout)
		resp.ManufactureDate = &s
	}
	return resp
}

func toLotResponses(as []expiry.Assessment) []LotResponse {
	out := make([]LotResponse, len(as))
	for i, a := range as {
		out[i] = toLotResponse(a)
	}
	return out
}

// SummaryCounts are the bucket sizes of a summary
type SummaryCounts struct {
	Expired  int `json:"expired"`
	Critical int `json:"critical"`
	Upcoming int `json:"upcoming"`
	AtRisk   int `json:"at_risk"`
}

// SummaryResponse is the dashboard view of an expiry summary
type SummaryResponse struct {
	ReferenceDate     string        `json:"reference_date"`
	Counts            SummaryCounts `json:"counts"`
	TotalValueAtRisk  string        `json:"total_value_at_risk"`
	TotalExpiredValue string        `json:"total_expired_value"`
	Expired           []LotResponse `json:"expired"`
	Critical          []LotResponse `json:"critical"`
	Upcoming          []LotResponse `json:"upcoming"`
}

func toSummaryResponse(s expiry.Summary) SummaryResponse {
	return SummaryResponse{
		ReferenceDate: s.ReferenceDate.Format(dateLayout),
		Counts: SummaryCounts{
			Expired:  len(s.Expired),
			Critical: len(s.Critical),
			Upcoming: len(s.Upcoming),
			AtRisk:   s.AtRiskCount(),
		},
		TotalValueAtRisk:  money(s.TotalValueAtRisk),
		TotalExpiredValue: money(s.TotalExpiredValue),
		Expired:           toLotResponses(s.Expired),
		Critical:          toLotResponses(s.Critical),
		Upcoming:          toLotResponses(s.Upcoming),
	}
}

// LossMonthResponse is one month of the loss report
type LossMonthResponse struct {
	ExpirationMonth      string   `json:"expiration_month"`
	ExpiredLotCount      int      `json:"expired_lot_count"`
	ExpiredUnitCount     int      `json:"expired_unit_count"`
	TotalLoss            string   `json:"total_loss"`
	AffectedProductCount int      `json:"affected_product_count"`
	ProductList          []string `json:"product_list,omitempty"`
}

// LotLossResponse is one expired lot in the loss detail
type LotLossResponse struct {
	LotID          string `json:"lot_id"`
	ProductName    string `json:"product_name"`
	BatchNumber    string `json:"batch_number"`
	ExpirationDate string `json:"expiration_date"`
	DaysExpired    int    `json:"days_expired"`
	Units          int    `json:"units"`
	EconomicLoss   string `json:"economic_loss"`
}

// LossReportResponse is the monthly loss report
type LossReportResponse struct {
	Months            []LossMonthResponse `json:"months"`
	TotalLoss         string              `json:"total_loss"`
	TotalExpiredUnits int                 `json:"total_expired_units"`
	MonthsWithLoss    int                 `json:"months_with_loss"`
	Lots              []LotLossResponse   `json:"lots,omitempty"`
}

func toLossReportResponse(r *service.LossReport) LossReportResponse {
	resp := LossReportResponse{
		Months:            make([]LossMonthResponse, len(r.Records)),
		TotalLoss:         money(r.Summary.TotalLoss),
		TotalExpiredUnits: r.Summary.TotalExpiredUnits,
		MonthsWithLoss:    r.Summary.MonthsWithLoss,
	}

	for i, rec := range r.Records {
		resp.Months[i] = LossMonthResponse{
			ExpirationMonth:      rec.ExpirationMonth.Format("2006-01"),
			ExpiredLotCount:      rec.ExpiredLotCount,
			ExpiredUnitCount:     rec.ExpiredUnitCount,
			TotalLoss:            money(rec.TotalLoss),
			AffectedProductCount: rec.AffectedProductCount,
			ProductList:          rec.ProductList,
		}
	}

	if r.Lots != nil {
		resp.Lots = make([]LotLossResponse, len(r.Lots))
		for i, l := range r.Lots {
			resp.Lots[i] = LotLossResponse{
				LotID:          l.Lot.ID,
				ProductName:    l.Lot.ProductName,
				BatchNumber:    l.Lot.BatchNumber,
				ExpirationDate: l.Lot.ExpirationDate.Format(dateLayout),
				DaysExpired:    l.DaysExpired,
				Units:          l.Units,
				EconomicLoss:   money(l.EconomicLoss),
			}
		}
	}

	return resp
}

// parseDate reads an optional YYYY-MM-DD value
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
