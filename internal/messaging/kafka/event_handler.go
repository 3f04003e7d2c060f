package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// NewEventLogHandler возвращает обработчик событий магазина: разбирает
// конверт, типизирует payload и пишет событие в журнал. Нечитаемое
// сообщение возвращает ошибку и после повторов уходит в DLQ; событие
// незнакомого типа подтверждается, чтобы не блокировать партицию.
func NewEventLogHandler(logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "event-log")
	}

	return func(_ context.Context, message *sarama.ConsumerMessage) error {
		envelope, err := ParseEnvelope(message.Value)
		if err != nil {
			return fmt.Errorf("parse message from %s: %w", message.Topic, err)
		}

		entry := logger.WithFields(log.Fields{
			"topic":      message.Topic,
			"event_id":   envelope.ID,
			"event_type": envelope.EventType,
		})

		switch envelope.EventType {
		case EventTypeOrderPlaced:
			event, err := ParseOrderPlacedEvent(envelope)
			if err != nil {
				return err
			}
			entry.WithFields(log.Fields{
				"order_id":     event.OrderID,
				"customer_id":  event.CustomerID,
				"amount_minor": event.AmountMinor,
				"lines":        len(event.Items),
			}).Info("order placed event received")

		case EventTypeStockDepleted, EventTypeStockRestocked:
			event, err := ParseStockEvent(envelope)
			if err != nil {
				return err
			}
			entry.WithFields(log.Fields{
				"sku":      event.SKU,
				"quantity": event.Quantity,
			}).Info("stock event received")

		default:
			entry.Warn("skipping event of unknown type")
		}

		return nil
	}
}
