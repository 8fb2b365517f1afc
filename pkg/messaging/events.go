package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Lot lifecycle
	EventLotCreated          = "inventory.lot.created"
	EventLotQuantityAdjusted = "inventory.lot.quantity_adjusted"

	// Expiry alerts raised by the refresh task
	EventLotExpired  = "inventory.lot.expired"
	EventLotCritical = "inventory.lot.critical"

	// Catalog
	EventProductPriceChanged = "catalog.product.price_changed"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeCatalogEvents   = "catalog.events"
)

// Event is the envelope every message is wrapped in
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// LotCreatedEvent is published when a lot is received into stock
type LotCreatedEvent struct {
	LotID          string `json:"lot_id"`
	ProductID      string `json:"product_id"`
	BatchNumber    string `json:"batch_number"`
	ExpirationDate string `json:"expiration_date"`
	Quantity       int    `json:"quantity"`
	CreatedBy      string `json:"created_by"`
}

// LotQuantityAdjustedEvent is published after a stock adjustment
type LotQuantityAdjustedEvent struct {
	LotID            string `json:"lot_id"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Reason           string `json:"reason"`
	ActorID          string `json:"actor_id"`
	ActorName        string `json:"actor_name"`
}

// LotExpiryAlertEvent is published once per lot when it turns critical or expired
type LotExpiryAlertEvent struct {
	LotID          string          `json:"lot_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	BatchNumber    string          `json:"batch_number"`
	ExpirationDate string          `json:"expiration_date"`
	DaysRemaining  int             `json:"days_remaining"`
	Tier           string          `json:"tier"`
	Units          int             `json:"units"`
	ValueAtRisk    decimal.Decimal `json:"value_at_risk"`
}

// ProductPriceChangedEvent is consumed from the catalog service
type ProductPriceChangedEvent struct {
	ProductID string              `json:"product_id"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
}
