package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, nil
	}

	brokerList := strings.Split(brokers, ",")
	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// initKafkaConsumer подписывает сервис на собственные топики событий:
// подтверждённые события пишутся в журнал, нечитаемые уходят в DLQ.
// Возвращает nil, nil если brokers или groupID пустые.
func initKafkaConsumer(brokers, groupID string, dlqProducer *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	if strings.TrimSpace(brokers) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}

	topics := []string{kafka.TopicOrderEvents, kafka.TopicStockEvents}
	handler := kafka.NewEventLogHandler(logger.WithField("layer", "events"))

	consumer, err := kafka.NewConsumerWithDLQ(strings.Split(brokers, ","), groupID, topics, handler, dlqProducer, 3)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka consumer, continuing without it")
		return nil, err
	}

	logger.WithFields(log.Fields{"group": groupID, "topics": topics}).Info("kafka consumer initialized")
	return consumer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
