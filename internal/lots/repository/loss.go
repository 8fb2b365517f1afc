package repository

import (
	"context"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/pkg/database"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// LossRange bounds a loss report by expiration date, both ends inclusive and optional
type LossRange struct {
	From      *time.Time
	To        *time.Time
	Reference time.Time
}

// LossRepository reads realised losses: stock left on lots that expired
type LossRepository struct {
	db *database.DB
}

// NewLossRepository creates a new loss repository
func NewLossRepository(db *database.DB) *LossRepository {
	return &LossRepository{db: db}
}

type lossRow struct {
	ExpirationMonth      time.Time       `db:"expiration_month"`
	ExpiredLotCount      int             `db:"expired_lot_count"`
	ExpiredUnitCount     int             `db:"expired_unit_count"`
	TotalLoss            decimal.Decimal `db:"total_loss"`
	AffectedProductCount int             `db:"affected_product_count"`
	ProductList          pq.StringArray  `db:"product_list"`
}

func expiredWhere(r LossRange) *where {
	w := &where{}
	w.add("expiration_date < " + w.arg(r.Reference.Format(dateLayout)) + "::date")
	w.add("current_quantity > 0")
	if r.From != nil {
		w.add("expiration_date >= " + w.arg(r.From.Format(dateLayout)) + "::date")
	}
	if r.To != nil {
		w.add("expiration_date <= " + w.arg(r.To.Format(dateLayout)) + "::date")
	}
	return w
}

// MonthlyLosses groups expired stock by expiration month, oldest first.
// Loss is valued at purchase price; lots without one add units but no money.
func (r *LossRepository) MonthlyLosses(ctx context.Context, rng LossRange) ([]expiry.LossRecord, error) {
	w := expiredWhere(rng)
	query := `
		SELECT
			date_trunc('month', expiration_date)::date AS expiration_month,
			COUNT(*) AS expired_lot_count,
			COALESCE(SUM(current_quantity), 0) AS expired_unit_count,
			COALESCE(SUM(current_quantity * COALESCE(purchase_price, 0)), 0) AS total_loss,
			COUNT(DISTINCT product_id) AS affected_product_count,
			array_agg(DISTINCT product_name ORDER BY product_name) AS product_list
		FROM lots` + w.clause() + `
		GROUP BY 1
		ORDER BY 1
	`

	var rows []lossRow
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, mapError(err)
	}

	records := make([]expiry.LossRecord, len(rows))
	for i, row := range rows {
		records[i] = expiry.LossRecord{
			ExpirationMonth:      expiry.Month(row.ExpirationMonth),
			ExpiredLotCount:      row.ExpiredLotCount,
			ExpiredUnitCount:     row.ExpiredUnitCount,
			TotalLoss:            row.TotalLoss,
			AffectedProductCount: row.AffectedProductCount,
			ProductList:          []string(row.ProductList),
		}
	}
	return records, nil
}

// ExpiredLots returns the lots behind MonthlyLosses, by expiration date
func (r *LossRepository) ExpiredLots(ctx context.Context, rng LossRange) ([]*LotRow, error) {
	w := expiredWhere(rng)
	query := `SELECT ` + lotColumns + ` FROM lots` + w.clause() + ` ORDER BY expiration_date, batch_number`

	lots := make([]*LotRow, 0)
	if err := r.db.SelectContext(ctx, &lots, query, w.args...); err != nil {
		return nil, mapError(err)
	}
	return lots, nil
}
