package orders

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderAccepted       = "OrderAccepted"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderUpdated        = "OrderUpdated"
	EventOrderCreated        = "OrderCreated"
	EventProductStockChanged = "ProductStockChanged"
)

const EventVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order or product id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher ships envelopes to the other instances.
type Publisher interface {
	Publish(ctx context.Context, key []byte, env Envelope) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []byte, Envelope) error { return nil }

// NewEnvelope wraps payload in a v1 envelope.
func NewEnvelope(eventType, producer string, correlationID int64, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatInt(correlationID, 10),
		Payload:       b,
	}, nil
}

// ---- payloads ----

type StatusChangedPayload struct {
	OrderID int64  `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	By      string `json:"by,omitempty"`
}

type OrderUpdatedPayload struct {
	OrderID   int64  `json:"order_id"`
	Status    Status `json:"status"`
	LineItems int    `json:"line_items"`
	By        string `json:"by,omitempty"`
}

type OrderCreatedPayload struct {
	OrderID int64           `json:"order_id"`
	Items   []ItemInput     `json:"items"`
	Total   decimal.Decimal `json:"total"`
	By      string          `json:"by,omitempty"`
}

type ProductStockChangedPayload struct {
	ProductID   int64       `json:"product_id"`
	StockStatus StockStatus `json:"stock_status"`
	By          string      `json:"by,omitempty"`
}
