package consumers

import (
	"context"
	"fmt"

	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

const queueName = "lots-service.events"

// LotCache is the part of the lot service that reacts to outside changes
type LotCache interface {
	InvalidateSnapshot()
	RepriceProduct(ctx context.Context, productID string, price decimal.NullDecimal) (int64, error)
}

// LotEventConsumer keeps cached summaries and lot prices in step with
// lot and catalog events.
type LotEventConsumer struct {
	consumer *messaging.Consumer
	lots     LotCache
	logger   *logger.Logger
}

// NewLotEventConsumer creates a consumer bound to the inventory and catalog exchanges
func NewLotEventConsumer(rmq *messaging.RabbitMQ, lots LotCache, log *logger.Logger) (*LotEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, "inventory.lot.#"); err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, messaging.EventProductPriceChanged); err != nil {
		return nil, err
	}

	c := newLotEventConsumer(lots, log)
	c.consumer = consumer

	consumer.RegisterHandler(messaging.EventLotCreated, c.handleLotChanged)
	consumer.RegisterHandler(messaging.EventLotQuantityAdjusted, c.handleLotChanged)
	consumer.RegisterHandler(messaging.EventProductPriceChanged, c.handlePriceChanged)

	return c, nil
}

func newLotEventConsumer(lots LotCache, log *logger.Logger) *LotEventConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &LotEventConsumer{lots: lots, logger: log.WithComponent("lot_consumer")}
}

// Start starts consuming messages
func (c *LotEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// handleLotChanged drops cached summaries so changes made on other
// instances show up on the next dashboard read.
func (c *LotEventConsumer) handleLotChanged(ctx context.Context, event *messaging.Event) error {
	c.logger.Debug().Str("event_type", event.Type).Str("event_id", event.ID).Msg("lot changed, invalidating snapshot")
	c.lots.InvalidateSnapshot()
	return nil
}

func (c *LotEventConsumer) handlePriceChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductPriceChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.ProductID == "" {
		return fmt.Errorf("price changed event %s without product_id", event.ID)
	}

	n, err := c.lots.RepriceProduct(ctx, data.ProductID, data.SalePrice)
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("product_id", data.ProductID).
		Int64("lots_updated", n).
		Msg("applied catalog sale price")

	return nil
}
