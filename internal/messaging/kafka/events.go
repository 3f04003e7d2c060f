package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Имена типов событий принадлежат домену; здесь только алиасы, чтобы
// kafka-код не таскал доменный пакет в каждую сигнатуру.
const (
	EventTypeOrderPlaced    = domain.EventTypeOrderPlaced
	EventTypeStockDepleted  = domain.EventTypeStockDepleted
	EventTypeStockRestocked = "stock.restocked"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicStockEvents     = "storefront.stock.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — обёртка, в которой outbox-паблишер кладёт события в топик.
// Консьюмеры сперва разбирают конверт, затем типизируют payload по
// event_type.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ParseEnvelope разбирает тело Kafka-сообщения в конверт события.
func ParseEnvelope(value []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if envelope.EventType == "" {
		return nil, fmt.Errorf("event envelope has no event_type")
	}
	return &envelope, nil
}

// OrderPlacedItem описывает одну позицию в событии размещения заказа.
type OrderPlacedItem struct {
	SKU        string `json:"sku"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderPlacedEvent — payload события order.placed.
type OrderPlacedEvent struct {
	EventType   string            `json:"event_type"`
	OrderID     string            `json:"order_id"`
	CustomerID  string            `json:"customer_id"`
	AmountMinor int64             `json:"amount_minor"`
	Items       []OrderPlacedItem `json:"items,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// StockEvent — payload событий stock.depleted и stock.restocked.
type StockEvent struct {
	EventType string    `json:"event_type"`
	SKU       string    `json:"sku"`
	Quantity  int32     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseOrderPlacedEvent типизирует payload конверта как order.placed.
func ParseOrderPlacedEvent(envelope *Envelope) (*OrderPlacedEvent, error) {
	if envelope.EventType != EventTypeOrderPlaced {
		return nil, fmt.Errorf("expected %s event, got %s", EventTypeOrderPlaced, envelope.EventType)
	}
	var event OrderPlacedEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", EventTypeOrderPlaced, err)
	}
	return &event, nil
}

// ParseStockEvent типизирует payload конверта как событие остатка.
func ParseStockEvent(envelope *Envelope) (*StockEvent, error) {
	if envelope.EventType != EventTypeStockDepleted && envelope.EventType != EventTypeStockRestocked {
		return nil, fmt.Errorf("expected stock event, got %s", envelope.EventType)
	}
	var event StockEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", envelope.EventType, err)
	}
	return &event, nil
}
