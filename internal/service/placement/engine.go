package placement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// maxCommitAttempts ограничивает число повторов цикла
	// чтение-проверка-фиксация при конфликте версий остатка.
	maxCommitAttempts = 3

	rejectReasonInvalidLines      = "invalid_lines"
	rejectReasonCustomerNotFound  = "customer_not_found"
	rejectReasonInvalidProducts   = "invalid_products"
	rejectReasonProductNotFound   = "product_not_found"
	rejectReasonInsufficientStock = "insufficient_stock"
)

// Engine выполняет размещение заказа как одну логическую транзакцию:
// валидация клиента и товаров, проверка остатков, фиксация списания
// и сохранение заказа с позициями. События (order.placed и, при
// исчерпании остатка, stock.depleted) попадают в outbox той же
// транзакцией, что и сам заказ.
type Engine struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	logger    *log.Entry
	metrics   *metrics.PlacementMetrics
}

// NewEngine создаёт рабочий экземпляр движка размещения.
func NewEngine(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	return &Engine{
		customers: customers,
		products:  products,
		orders:    orders,
		logger:    logger,
		metrics:   metrics.NewPlacementMetrics(),
	}
}

// NewEngineWithoutMetrics создаёт движок без метрик (для тестов).
func NewEngineWithoutMetrics(
	customers domain.CustomerRepository,
	products domain.ProductRepository,
	orders domain.OrderRepository,
	logger *log.Entry,
) *Engine {
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	return &Engine{
		customers: customers,
		products:  products,
		orders:    orders,
		logger:    logger,
		metrics:   nil, // Отключаем метрики для тестов
	}
}

// PlaceOrder размещает заказ клиента по списку запрошенных позиций.
//
// До фиксации списания остатков ни одно хранилище не мутируется: все
// проверки и уменьшение количеств выполняются на копиях в памяти.
// Фиксация — compare-and-swap по версии каждой записи остатка; при
// проигранной гонке весь цикл повторяется с перечитанными остатками.
// Заказ сохраняется только после успешной фиксации списания.
func (e *Engine) PlaceOrder(ctx context.Context, customerID string, lines []domain.LineRequest) (domain.Order, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordPlacementStarted()
		e.metrics.RecordLinesPerOrder(len(lines))
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordPlacementDuration(time.Since(start))
		}
	}()

	if err := e.validateLines(lines); err != nil {
		e.reject(rejectReasonInvalidLines)
		return domain.Order{}, err
	}

	customer, err := e.customers.FindByID(customerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			e.reject(rejectReasonCustomerNotFound)
			e.logger.WithField("customer_id", customerID).Warn("placement rejected: customer not found")
			return domain.Order{}, err
		}
		e.fail()
		return domain.Order{}, err
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			e.fail()
			return domain.Order{}, err
		}

		order, err := e.tryPlace(customer, lines)
		if err == nil {
			if e.metrics != nil {
				e.metrics.RecordPlacementSucceeded()
			}
			e.logger.WithFields(log.Fields{
				"order_id":    order.ID,
				"customer_id": order.CustomerID,
				"lines":       len(order.Items),
			}).Info("order placed")
			return order, nil
		}

		if domain.IsStockConflict(err) && attempt < maxCommitAttempts {
			if e.metrics != nil {
				e.metrics.RecordStockConflictRetry()
			}
			e.logger.WithFields(log.Fields{
				"customer_id": customerID,
				"attempt":     attempt,
			}).Warn("stock version conflict, retrying placement")
			continue
		}

		e.recordFailure(err)
		return domain.Order{}, err
	}
}

// tryPlace выполняет один цикл: чтение остатков, проверка, фиксация, сохранение.
func (e *Engine) tryPlace(customer domain.Customer, lines []domain.LineRequest) (domain.Order, error) {
	stock, err := e.resolveStock(lines)
	if err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(lines))
	touched := make([]string, 0, len(lines))
	var amountSum int64

	// Проверяем и списываем на копиях в памяти, в порядке запроса.
	for _, line := range lines {
		entry := stock[line.SKU]
		if line.Qty > entry.Quantity {
			return domain.Order{}, domain.NewInsufficientStockError(line.SKU)
		}
		touched = appendUnique(touched, line.SKU)
		entry.Quantity -= line.Qty
		entry.UpdatedAt = now
		stock[line.SKU] = entry

		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			SKU:        line.SKU,
			Qty:        line.Qty,
			PriceMinor: entry.PriceMinor,
			CreatedAt:  now,
		})
		amountSum += int64(line.Qty) * entry.PriceMinor
	}

	// Фиксируем списание одним батчем; CAS по версии внутри хранилища.
	updates := make([]domain.StockEntry, 0, len(touched))
	for _, sku := range touched {
		updates = append(updates, stock[sku])
	}
	if err := e.products.UpdateQuantities(updates); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  customer.ID,
		AmountMinor: amountSum,
		Items:       items,
		CreatedAt:   now,
	}

	events, err := placementEvents(order, updates)
	if err != nil {
		// Остатки уже списаны: не маскируем разрыв, отдаём ошибку наверх.
		e.logger.WithError(err).WithField("order_id", order.ID).Error("build placement events failed after stock commit")
		return domain.Order{}, err
	}

	persisted, err := e.orders.Create(order, events)
	if err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("order persist failed after stock commit")
		return domain.Order{}, err
	}

	if e.metrics != nil {
		for range events {
			e.metrics.RecordOutboxEvent()
		}
	}
	return persisted, nil
}

// placementEvents собирает outbox-события одного размещения: order.placed
// и stock.depleted для каждой позиции, остаток которой списан в ноль.
// Хранилище заказов фиксирует их в одной транзакции с самим заказом.
func placementEvents(order domain.Order, updates []domain.StockEntry) ([]domain.OutboxMessage, error) {
	type placedItem struct {
		SKU        string `json:"sku"`
		Qty        int32  `json:"qty"`
		PriceMinor int64  `json:"price_minor"`
	}

	items := make([]placedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, placedItem{SKU: item.SKU, Qty: item.Qty, PriceMinor: item.PriceMinor})
	}

	placed, err := json.Marshal(map[string]any{
		"event_type":   domain.EventTypeOrderPlaced,
		"order_id":     order.ID,
		"customer_id":  order.CustomerID,
		"amount_minor": order.AmountMinor,
		"items":        items,
		"timestamp":    order.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", domain.EventTypeOrderPlaced, err)
	}

	events := []domain.OutboxMessage{{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     domain.EventTypeOrderPlaced,
		Payload:       placed,
	}}

	for _, entry := range updates {
		if entry.Quantity != 0 {
			continue
		}
		depleted, err := json.Marshal(map[string]any{
			"event_type": domain.EventTypeStockDepleted,
			"sku":        entry.SKU,
			"quantity":   entry.Quantity,
			"timestamp":  entry.UpdatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal %s event: %w", domain.EventTypeStockDepleted, err)
		}
		events = append(events, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeStock,
			AggregateID:   entry.SKU,
			EventType:     domain.EventTypeStockDepleted,
			Payload:       depleted,
		})
	}

	return events, nil
}

// resolveStock читает остатки одним батчем и сопоставляет их с запросом по SKU.
func (e *Engine) resolveStock(lines []domain.LineRequest) (map[string]domain.StockEntry, error) {
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		skus = appendUnique(skus, line.SKU)
	}

	entries, err := e.products.FindAllBySKUs(skus)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrInvalidProducts
	}

	stock := make(map[string]domain.StockEntry, len(entries))
	for _, entry := range entries {
		stock[entry.SKU] = entry
	}

	// Любой запрошенный SKU, которого нет в ответе хранилища, —
	// самостоятельная ошибка с указанием товара, а не только пустой результат.
	for _, sku := range skus {
		if _, ok := stock[sku]; !ok {
			return nil, domain.NewProductNotFoundError(sku)
		}
	}

	return stock, nil
}

func (e *Engine) validateLines(lines []domain.LineRequest) error {
	if len(lines) == 0 {
		return domain.ErrItemsRequired
	}
	for _, line := range lines {
		if errs := line.Validate(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

func (e *Engine) recordFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		e.reject(rejectReasonInsufficientStock)
	case errors.Is(err, domain.ErrInvalidProducts):
		e.reject(rejectReasonInvalidProducts)
	case errors.Is(err, domain.ErrProductNotFound):
		e.reject(rejectReasonProductNotFound)
	default:
		e.fail()
	}
}

func (e *Engine) reject(reason string) {
	if e.metrics != nil {
		e.metrics.RecordPlacementRejected(reason)
	}
}

func (e *Engine) fail() {
	if e.metrics != nil {
		e.metrics.RecordPlacementFailed()
	}
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
