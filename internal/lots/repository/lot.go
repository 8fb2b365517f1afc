package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/pkg/database"
	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LotRow is the storage shape of a lot
type LotRow struct {
	ID              string              `db:"id" json:"id"`
	ProductID       string              `db:"product_id" json:"product_id"`
	ProductName     string              `db:"product_name" json:"product_name"`
	ProductCode     string              `db:"product_code" json:"product_code"`
	BatchNumber     string              `db:"batch_number" json:"batch_number"`
	ExpirationDate  time.Time           `db:"expiration_date" json:"expiration_date"`
	ManufactureDate *time.Time          `db:"manufacture_date" json:"manufacture_date,omitempty"`
	InitialQuantity int                 `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int                 `db:"current_quantity" json:"current_quantity"`
	PurchasePrice   decimal.NullDecimal `db:"purchase_price" json:"purchase_price"`
	SalePrice       decimal.NullDecimal `db:"sale_price" json:"sale_price"`
	SupplierName    *string             `db:"supplier_name" json:"supplier_name,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// ToLot is the single mapping from storage into the expiry engine
func (r *LotRow) ToLot() expiry.Lot {
	lot := expiry.Lot{
		ID:              r.ID,
		ProductID:       r.ProductID,
		ProductName:     r.ProductName,
		ProductCode:     r.ProductCode,
		BatchNumber:     r.BatchNumber,
		ExpirationDate:  r.ExpirationDate,
		ManufactureDate: r.ManufactureDate,
		InitialQuantity: r.InitialQuantity,
		CurrentQuantity: r.CurrentQuantity,
		PurchasePrice:   r.PurchasePrice,
		SalePrice:       r.SalePrice,
	}
	if r.SupplierName != nil {
		lot.SupplierName = *r.SupplierName
	}
	return lot
}

// ToLots maps a result set, keeping its order
func ToLots(rows []*LotRow) []expiry.Lot {
	lots := make([]expiry.Lot, len(rows))
	for i, r := range rows {
		lots[i] = r.ToLot()
	}
	return lots
}

// Movement is one recorded change of a lot's stock
type Movement struct {
	ID               string    `db:"id" json:"id"`
	LotID            string    `db:"lot_id" json:"lot_id"`
	PreviousQuantity int       `db:"previous_quantity" json:"previous_quantity"`
	NewQuantity      int       `db:"new_quantity" json:"new_quantity"`
	Reason           string    `db:"reason" json:"reason"`
	PerformedBy      string    `db:"performed_by" json:"performed_by"`
	PerformedByName  *string   `db:"performed_by_name" json:"performed_by_name,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// LotFilter narrows List. Tier is matched against Reference.
type LotFilter struct {
	Page               int
	PerPage            int
	Search             string
	ProductID          string
	Tier               expiry.Tier
	ExpiringWithinDays int
	Reference          time.Time
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

const lotColumns = `id, product_id, product_name, product_code, batch_number, expiration_date,
	manufacture_date, initial_quantity, current_quantity, purchase_price, sale_price,
	supplier_name, created_at, updated_at`

// Create inserts a lot, generating its ID when empty
func (r *LotRepository) Create(ctx context.Context, lot *LotRow) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, product_id, product_name, product_code, batch_number, expiration_date,
			manufacture_date, initial_quantity, current_quantity, purchase_price, sale_price,
			supplier_name
		) VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	var manufactured *string
	if lot.ManufactureDate != nil {
		s := lot.ManufactureDate.Format(dateLayout)
		manufactured = &s
	}

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.ProductName, lot.ProductCode, lot.BatchNumber,
		lot.ExpirationDate.Format(dateLayout), manufactured,
		lot.InitialQuantity, lot.CurrentQuantity, lot.PurchasePrice, lot.SalePrice,
		lot.SupplierName,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*LotRow, error) {
	var lot LotRow
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("lot")
		}
		return nil, mapError(err)
	}
	return &lot, nil
}

// List returns one page of lots ordered by expiration date, plus the total match count
func (r *LotRepository) List(ctx context.Context, f LotFilter) ([]*LotRow, int64, error) {
	w := &where{}

	if f.Search != "" {
		p := w.arg("%" + f.Search + "%")
		w.add(fmt.Sprintf("(product_name ILIKE %s OR product_code ILIKE %s OR batch_number ILIKE %s)", p, p, p))
	}
	if f.ProductID != "" {
		w.add("product_id = " + w.arg(f.ProductID))
	}
	if f.ExpiringWithinDays > 0 {
		w.add("expiration_date <= " + w.arg(addDays(f.Reference, f.ExpiringWithinDays)) + "::date")
	}
	if f.Tier != "" {
		if f.Tier == expiry.TierDepleted {
			w.add("current_quantity = 0")
		} else if lo, hi, ok := f.Tier.DayRange(); ok {
			if lo != nil {
				w.add("expiration_date >= " + w.arg(addDays(f.Reference, *lo)) + "::date")
			}
			if hi != nil {
				w.add("expiration_date <= " + w.arg(addDays(f.Reference, *hi)) + "::date")
			}
		}
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM lots`+w.clause(), w.args...); err != nil {
		return nil, 0, mapError(err)
	}

	offset := (f.Page - 1) * f.PerPage
	query := `SELECT ` + lotColumns + ` FROM lots` + w.clause() +
		fmt.Sprintf(` ORDER BY expiration_date, batch_number LIMIT %s OFFSET %s`, w.arg(f.PerPage), w.arg(offset))

	lots := make([]*LotRow, 0)
	if err := r.db.SelectContext(ctx, &lots, query, w.args...); err != nil {
		return nil, 0, mapError(err)
	}

	return lots, total, nil
}

// ListExpiring returns every lot expiring on or before reference+withinDays, expired
// ones included. Depleted lots are kept only while their date is still ahead.
func (r *LotRepository) ListExpiring(ctx context.Context, withinDays int, reference time.Time) ([]*LotRow, error) {
	query := `
		SELECT ` + lotColumns + ` FROM lots
		WHERE expiration_date <= $1::date
		AND (current_quantity > 0 OR expiration_date >= $2::date)
		ORDER BY expiration_date, batch_number
	`

	lots := make([]*LotRow, 0)
	err := r.db.SelectContext(ctx, &lots, query,
		addDays(reference, withinDays), reference.Format(dateLayout))
	if err != nil {
		return nil, mapError(err)
	}
	return lots, nil
}

// AdjustQuantity sets a lot's stock and records the movement in one transaction
func (r *LotRepository) AdjustQuantity(ctx context.Context, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var previous int
		err := tx.GetContext(ctx, &previous, `SELECT current_quantity FROM lots WHERE id = $1 FOR UPDATE`, m.LotID)
		if err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return errors.NotFound("lot")
			}
			return mapError(err)
		}
		m.PreviousQuantity = previous

		if _, err := tx.ExecContext(ctx,
			`UPDATE lots SET current_quantity = $2, updated_at = NOW() WHERE id = $1`,
			m.LotID, m.NewQuantity,
		); err != nil {
			return mapError(err)
		}

		query := `
			INSERT INTO lot_movements (
				id, lot_id, previous_quantity, new_quantity, reason, performed_by, performed_by_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			m.ID, m.LotID, m.PreviousQuantity, m.NewQuantity, m.Reason, m.PerformedBy, m.PerformedByName,
		).Scan(&m.CreatedAt); err != nil {
			return mapError(err)
		}

		return nil
	})
}

// ListMovements returns a lot's movements, newest first
func (r *LotRepository) ListMovements(ctx context.Context, lotID string) ([]*Movement, error) {
	query := `
		SELECT id, lot_id, previous_quantity, new_quantity, reason, performed_by, performed_by_name, created_at
		FROM lot_movements
		WHERE lot_id = $1
		ORDER BY created_at DESC
	`

	movements := make([]*Movement, 0)
	if err := r.db.SelectContext(ctx, &movements, query, lotID); err != nil {
		return nil, mapError(err)
	}
	return movements, nil
}

// UpdateSalePriceByProduct reprices every lot of a product that still has stock
func (r *LotRepository) UpdateSalePriceByProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lots SET sale_price = $2, updated_at = NOW() WHERE product_id = $1 AND current_quantity > 0`,
		productID, price,
	)
	if err != nil {
		return 0, mapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func addDays(t time.Time, days int) string {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func mapError(err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// where accumulates AND-ed conditions with positional arguments
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
