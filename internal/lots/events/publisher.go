package events

import (
	"context"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/farmaflow/farmaflow-backend/internal/lots/repository"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/messaging"
)

const sourceName = "lots-service"

// Publisher is the transport the lot events are written to.
// *messaging.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// LotEventPublisher publishes lot-related events. A nil publisher is a no-op.
type LotEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewLotEventPublisher creates a publisher on the inventory exchange
func NewLotEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*LotEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, sourceName, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing transport
func NewWithPublisher(p Publisher, log *logger.Logger) *LotEventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &LotEventPublisher{publisher: p, logger: log}
}

// PublishLotCreated publishes a lot created event
func (p *LotEventPublisher) PublishLotCreated(ctx context.Context, lot *repository.LotRow, createdBy string) {
	if p == nil {
		return
	}

	data := messaging.LotCreatedEvent{
		LotID:          lot.ID,
		ProductID:      lot.ProductID,
		BatchNumber:    lot.BatchNumber,
		ExpirationDate: lot.ExpirationDate.Format("2006-01-02"),
		Quantity:       lot.CurrentQuantity,
		CreatedBy:      createdBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotCreated, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot created event")
	}
}

// PublishQuantityAdjusted publishes a stock adjustment
func (p *LotEventPublisher) PublishQuantityAdjusted(ctx context.Context, m *repository.Movement) {
	if p == nil {
		return
	}

	data := messaging.LotQuantityAdjustedEvent{
		LotID:            m.LotID,
		PreviousQuantity: m.PreviousQuantity,
		NewQuantity:      m.NewQuantity,
		Reason:           m.Reason,
		ActorID:          m.PerformedBy,
	}
	if m.PerformedByName != nil {
		data.ActorName = *m.PerformedByName
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotQuantityAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", m.LotID).Msg("failed to publish quantity adjusted event")
	}
}

// PublishExpiryAlert announces a lot that turned critical or expired.
// The error is returned so the caller can retry the announcement later.
func (p *LotEventPublisher) PublishExpiryAlert(ctx context.Context, a expiry.Assessment) error {
	if p == nil {
		return nil
	}

	eventType := messaging.EventLotCritical
	if a.Tier == expiry.TierExpired {
		eventType = messaging.EventLotExpired
	}

	data := messaging.LotExpiryAlertEvent{
		LotID:          a.Lot.ID,
		ProductID:      a.Lot.ProductID,
		ProductName:    a.Lot.ProductName,
		BatchNumber:    a.Lot.BatchNumber,
		ExpirationDate: a.Lot.ExpirationDate.Format("2006-01-02"),
		DaysRemaining:  a.DaysRemaining,
		Tier:           string(a.Tier),
		Units:          a.Lot.CurrentQuantity,
		ValueAtRisk:    a.Lot.StockValue(),
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", a.Lot.ID).Str("tier", string(a.Tier)).Msg("failed to publish expiry alert")
		return err
	}
	return nil
}
