package domain

import "time"

// Типы событий, проходящих через transactional outbox. Единственный
// источник имён: их же используют kafka-слой и подписчики.
const (
	EventTypeOrderPlaced   = "order.placed"
	EventTypeStockDepleted = "stock.depleted"

	AggregateTypeOrder = "order"
	AggregateTypeStock = "stock"
)

// OutboxMessage — одна запись transactional outbox: событие, ожидающее
// доставки во внешний брокер.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats — срез состояния outbox для мониторинга и readiness-проб.
type OutboxStats struct {
	PendingCount    int
	FailedCount     int
	OldestPendingAt time.Time
}

// OutboxPublisher доставляет событие во внешний брокер.
type OutboxPublisher interface {
	// Publish обязан быть идемпотентным: воркер может повторить доставку.
	Publish(event OutboxMessage) error
}

// OutboxRepository хранит события, ожидающие публикации. Новые записи
// попадают сюда в одной транзакции с доменной записью (см.
// OrderRepository.Create), воркер забирает их пачками.
type OutboxRepository interface {
	// Enqueue сохраняет событие со статусом pending. Пустой ID заменяется
	// сгенерированным.
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	// PullPending отдаёт до limit pending-событий, старые первыми.
	PullPending(limit int) ([]OutboxMessage, error)
	// Stats возвращает размеры беклога и возраст старейшей pending-записи.
	Stats() (OutboxStats, error)
	// MarkSent помечает событие доставленным.
	MarkSent(id string) error
	// MarkFailed помечает событие недоставленным и сохраняет причину
	// последней ошибки для диагностики и ручной реобработки.
	MarkFailed(id string, reason string) error
}
