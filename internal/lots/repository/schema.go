package repository

import (
	"context"
	"fmt"

	"github.com/farmaflow/farmaflow-backend/pkg/database"
)

// Schema creates the lots tables. Statements are idempotent.
const Schema = `
	CREATE TABLE IF NOT EXISTS lots (
		id UUID PRIMARY KEY,
		product_id UUID NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		product_code VARCHAR(64) NOT NULL DEFAULT '',
		batch_number VARCHAR(100) NOT NULL,
		expiration_date DATE NOT NULL,
		manufacture_date DATE,
		initial_quantity INTEGER NOT NULL,
		current_quantity INTEGER NOT NULL,
		purchase_price NUMERIC(12,4),
		sale_price NUMERIC(12,4),
		supplier_name VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT lots_quantity_non_negative CHECK (current_quantity >= 0 AND initial_quantity >= 0),
		CONSTRAINT lots_price_non_negative CHECK (purchase_price >= 0 AND sale_price >= 0),
		CONSTRAINT lots_product_batch_number_key UNIQUE (product_id, batch_number)
	);

	CREATE INDEX IF NOT EXISTS idx_lots_expiration_date ON lots (expiration_date);
	CREATE INDEX IF NOT EXISTS idx_lots_product_id ON lots (product_id);

	CREATE TABLE IF NOT EXISTS lot_movements (
		id UUID PRIMARY KEY,
		lot_id UUID NOT NULL REFERENCES lots(id) ON DELETE CASCADE,
		previous_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL,
		reason VARCHAR(255) NOT NULL,
		performed_by VARCHAR(100) NOT NULL,
		performed_by_name VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_lot_movements_lot_id ON lot_movements (lot_id, created_at DESC);
`

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply lots schema: %w", err)
	}
	return nil
}
