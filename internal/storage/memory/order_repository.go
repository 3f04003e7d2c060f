package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory — простая in-memory реализация OrderRepository.
// При заданном outbox заказ и его события фиксируются как одно целое:
// отказ постановки события откатывает и сам заказ.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Order
	outbox domain.OutboxRepository
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]domain.Order),
	}
}

// NewOrderRepositoryWithOutbox возвращает репозиторий, который ставит
// переданные в Create события в outbox атомарно с сохранением заказа.
func NewOrderRepositoryWithOutbox(outbox domain.OutboxRepository) domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:  make(map[string]domain.Order),
		outbox: outbox,
	}
}

// Create сохраняет новый заказ вместе с позициями, если ID ещё не занят,
// и ставит события заказа в outbox. Если хоть одно событие поставить не
// удалось, заказ не сохраняется.
func (r *orderRepositoryInMemory) Create(order domain.Order, events []domain.OutboxMessage) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.Order{}, domain.ErrOrderAlreadyExists
	}

	if r.outbox != nil {
		for _, event := range events {
			if _, err := r.outbox.Enqueue(event); err != nil {
				return domain.Order{}, fmt.Errorf("enqueue %s event: %w", event.EventType, err)
			}
		}
	}

	// Сохраняем копию с собственным срезом позиций, чтобы избежать
	// непредсказуемых мутаций извне.
	stored := order
	stored.Items = make([]domain.OrderItem, len(order.Items))
	copy(stored.Items, order.Items)
	r.items[order.ID] = stored
	return stored, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
