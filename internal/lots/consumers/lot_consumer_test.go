package consumers

import (
	"context"
	"testing"

	"github.com/farmaflow/farmaflow-backend/pkg/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLotCache struct {
	invalidations int
	repriced      map[string]decimal.NullDecimal
	err           error
}

func (f *fakeLotCache) InvalidateSnapshot() {
	f.invalidations++
}

func (f *fakeLotCache) RepriceProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.repriced == nil {
		f.repriced = map[string]decimal.NullDecimal{}
	}
	f.repriced[productID] = price
	return 2, nil
}

func newEvent(t *testing.T, eventType string, data interface{}) *messaging.Event {
	t.Helper()
	event, err := messaging.NewEvent(eventType, "test", "", data)
	require.NoError(t, err)
	return event
}

func TestLotEventConsumer_LotChanged(t *testing.T) {
	cache := &fakeLotCache{}
	c := newLotEventConsumer(cache, nil)

	for _, eventType := range []string{messaging.EventLotCreated, messaging.EventLotQuantityAdjusted} {
		require.NoError(t, c.handleLotChanged(context.Background(), newEvent(t, eventType, messaging.LotCreatedEvent{LotID: "lot-1"})))
	}
	assert.Equal(t, 2, cache.invalidations)
}

func TestLotEventConsumer_PriceChanged(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		cacheErr  error
		wantErr   bool
		wantPrice string
		wantValid bool
	}{
		{name: "new price", body: `{"product_id":"p-1","sale_price":"4.20"}`, wantPrice: "4.20", wantValid: true},
		{name: "price cleared", body: `{"product_id":"p-1","sale_price":null}`},
		{name: "missing product", body: `{"sale_price":"1"}`, wantErr: true},
		{name: "malformed", body: `{"product_id":`, wantErr: true},
		{name: "store failure", body: `{"product_id":"p-1","sale_price":"1"}`, cacheErr: assert.AnError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeLotCache{err: tt.cacheErr}
			c := newLotEventConsumer(cache, nil)
			event := &messaging.Event{ID: "evt-1", Type: messaging.EventProductPriceChanged, Data: []byte(tt.body)}

			err := c.handlePriceChanged(context.Background(), event)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			got := cache.repriced["p-1"]
			assert.Equal(t, tt.wantValid, got.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.wantPrice, got.Decimal.StringFixed(2))
			}
		})
	}
}
