package placement_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/placement"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Уменьшаем шум в тестах
	return logger.WithField("component", "placement-test")
}

type fixture struct {
	customers domain.CustomerRepository
	products  domain.ProductRepository
	orders    domain.OrderRepository
	engine    *placement.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	orders := memory.NewOrderRepository()
	engine := placement.NewEngineWithoutMetrics(customers, products, orders, loggerForTests())

	return &fixture{
		customers: customers,
		products:  products,
		orders:    orders,
		engine:    engine,
	}
}

func (f *fixture) seedCustomer(t *testing.T, id string) {
	t.Helper()
	err := f.customers.Create(domain.Customer{ID: id, Name: "test", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("seed customer failed: %v", err)
	}
}

func (f *fixture) seedProduct(t *testing.T, sku string, qty int32, price int64) {
	t.Helper()
	err := f.products.Upsert(domain.StockEntry{SKU: sku, Quantity: qty, PriceMinor: price})
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
}

func (f *fixture) quantity(t *testing.T, sku string) int32 {
	t.Helper()
	entries, err := f.products.FindAllBySKUs([]string{sku})
	if err != nil || len(entries) != 1 {
		t.Fatalf("failed to read stock for %s: %v", sku, err)
	}
	return entries[0].Quantity
}

// Успешное размещение списывает остаток и фиксирует цену.
func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 500)

	order, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 3}})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if order.ID == "" {
		t.Fatal("expected assigned order id")
	}
	if order.CustomerID != "C1" {
		t.Fatalf("expected customer C1, got %s", order.CustomerID)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.SKU != "P1" || item.Qty != 3 || item.PriceMinor != 500 {
		t.Fatalf("unexpected line item: %+v", item)
	}
	if order.AmountMinor != 1500 {
		t.Fatalf("expected amount 1500, got %d", order.AmountMinor)
	}
	if got := f.quantity(t, "P1"); got != 7 {
		t.Fatalf("expected quantity 7 after placement, got %d", got)
	}

	// Заказ действительно сохранён.
	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("stored order not found: %v", err)
	}
	if stored.AmountMinor != order.AmountMinor {
		t.Fatalf("stored order differs: %+v", stored)
	}
}

// Неизвестный клиент отклоняется до любых обращений к остаткам.
func TestPlaceOrder_CustomerNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "P1", 10, 500)

	_, err := f.engine.PlaceOrder(context.Background(), "C-missing", []domain.LineRequest{{SKU: "P1", Qty: 1}})
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if got := f.quantity(t, "P1"); got != 10 {
		t.Fatalf("expected untouched stock, got %d", got)
	}
}

// Нехватка остатка называет товар и ничего не меняет.
func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 2, 500)

	_, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 5}})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "P1") {
		t.Fatalf("expected error to name product P1, got %q", err.Error())
	}
	if got := f.quantity(t, "P1"); got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}

	orders, err := f.orders.ListByCustomer("C1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no persisted orders, got %d", len(orders))
	}
}

// Отказ на любой строке не трогает ни остатки, ни заказы.
func TestPlaceOrder_AtomicAcrossLines(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 500)
	f.seedProduct(t, "P2", 1, 300)

	_, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{
		{SKU: "P1", Qty: 3},
		{SKU: "P2", Qty: 4}, // не хватает
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	if got := f.quantity(t, "P1"); got != 10 {
		t.Fatalf("P1 stock mutated on failed placement: %d", got)
	}
	if got := f.quantity(t, "P2"); got != 1 {
		t.Fatalf("P2 stock mutated on failed placement: %d", got)
	}
}

// Цена позиции фиксируется на момент размещения.
func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 500)

	order, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 1}})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	// Меняем цену товара после размещения.
	entries, err := f.products.FindAllBySKUs([]string{"P1"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	entries[0].PriceMinor = 900
	if err := f.products.UpdateQuantities(entries); err != nil {
		t.Fatalf("price update failed: %v", err)
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Items[0].PriceMinor != 500 {
		t.Fatalf("expected snapshot price 500, got %d", stored.Items[0].PriceMinor)
	}
}

// Позиции заказа сохраняют порядок запроса.
func TestPlaceOrder_PreservesRequestOrder(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 100)
	f.seedProduct(t, "P2", 10, 200)
	f.seedProduct(t, "P3", 10, 300)

	lines := []domain.LineRequest{
		{SKU: "P3", Qty: 1},
		{SKU: "P1", Qty: 2},
		{SKU: "P2", Qty: 3},
	}
	order, err := f.engine.PlaceOrder(context.Background(), "C1", lines)
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if len(order.Items) != len(lines) {
		t.Fatalf("expected %d items, got %d", len(lines), len(order.Items))
	}
	for i, line := range lines {
		if order.Items[i].SKU != line.SKU || order.Items[i].Qty != line.Qty {
			t.Fatalf("item %d out of order: %+v", i, order.Items[i])
		}
	}
}

func TestPlaceOrder_NoProductsExist(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")

	_, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "ghost", Qty: 1}})
	if !errors.Is(err, domain.ErrInvalidProducts) {
		t.Fatalf("expected ErrInvalidProducts, got %v", err)
	}
}

func TestPlaceOrder_PartialUnknownProduct(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 500)

	// Частично неизвестный набор — это точная ошибка про конкретный SKU,
	// а не только проверка пустого результата.
	_, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{
		{SKU: "P1", Qty: 1},
		{SKU: "ghost", Qty: 1},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected error to name missing sku, got %q", err.Error())
	}
	if got := f.quantity(t, "P1"); got != 10 {
		t.Fatalf("expected untouched stock, got %d", got)
	}
}

func TestPlaceOrder_RejectsInvalidLines(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 500)

	cases := []struct {
		name  string
		lines []domain.LineRequest
		want  error
	}{
		{name: "empty request", lines: nil, want: domain.ErrItemsRequired},
		{name: "zero qty", lines: []domain.LineRequest{{SKU: "P1", Qty: 0}}, want: domain.ErrLineQtyInvalid},
		{name: "negative qty", lines: []domain.LineRequest{{SKU: "P1", Qty: -2}}, want: domain.ErrLineQtyInvalid},
		{name: "empty sku", lines: []domain.LineRequest{{Qty: 1}}, want: domain.ErrLineSKURequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.PlaceOrder(context.Background(), "C1", tc.lines)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if got := f.quantity(t, "P1"); got != 10 {
		t.Fatalf("expected untouched stock, got %d", got)
	}
}

func TestPlaceOrder_DuplicateSKULines(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 100)

	// Две строки одного SKU списываются из общего staged-остатка.
	order, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{
		{SKU: "P1", Qty: 4},
		{SKU: "P1", Qty: 4},
	})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if got := f.quantity(t, "P1"); got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}
}

func TestPlaceOrder_DuplicateSKULines_SharedStock(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 7, 100)

	// 4 + 4 > 7: вторая строка должна упереться в уже списанный остаток.
	_, err := f.engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{
		{SKU: "P1", Qty: 4},
		{SKU: "P1", Qty: 4},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := f.quantity(t, "P1"); got != 7 {
		t.Fatalf("expected untouched stock, got %d", got)
	}
}

func TestPlaceOrder_EmitsOutboxEvent(t *testing.T) {
	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	outbox := memory.NewOutboxRepository()
	orders := memory.NewOrderRepositoryWithOutbox(outbox)

	engine := placement.NewEngineWithoutMetrics(customers, products, orders, loggerForTests())

	if err := customers.Create(domain.Customer{ID: "C1"}); err != nil {
		t.Fatalf("seed customer failed: %v", err)
	}
	if err := products.Upsert(domain.StockEntry{SKU: "P1", Quantity: 5, PriceMinor: 100}); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	order, err := engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 2}})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	pending := outbox.AllPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != domain.EventTypeOrderPlaced {
		t.Fatalf("expected %s event, got %s", domain.EventTypeOrderPlaced, pending[0].EventType)
	}
	if pending[0].AggregateType != domain.AggregateTypeOrder {
		t.Fatalf("expected aggregate type %s, got %s", domain.AggregateTypeOrder, pending[0].AggregateType)
	}
	if pending[0].AggregateID != order.ID {
		t.Fatalf("expected aggregate id %s, got %s", order.ID, pending[0].AggregateID)
	}
	if !strings.Contains(string(pending[0].Payload), order.ID) {
		t.Fatalf("expected payload to reference order id, got %s", pending[0].Payload)
	}
}

// Списание остатка до нуля порождает stock.depleted рядом с order.placed.
func TestPlaceOrder_EmitsStockDepletedEvent(t *testing.T) {
	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	outbox := memory.NewOutboxRepository()
	orders := memory.NewOrderRepositoryWithOutbox(outbox)

	engine := placement.NewEngineWithoutMetrics(customers, products, orders, loggerForTests())

	if err := customers.Create(domain.Customer{ID: "C1"}); err != nil {
		t.Fatalf("seed customer failed: %v", err)
	}
	if err := products.Upsert(domain.StockEntry{SKU: "P1", Quantity: 3, PriceMinor: 100}); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	_, err := engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 3}})
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	pending := outbox.AllPending()
	if len(pending) != 2 {
		t.Fatalf("expected order.placed and stock.depleted, got %d events", len(pending))
	}
	var depleted *domain.OutboxMessage
	for i := range pending {
		if pending[i].EventType == domain.EventTypeStockDepleted {
			depleted = &pending[i]
		}
	}
	if depleted == nil {
		t.Fatalf("stock.depleted event missing, got %+v", pending)
	}
	if depleted.AggregateType != domain.AggregateTypeStock || depleted.AggregateID != "P1" {
		t.Fatalf("unexpected stock event aggregate: %s/%s", depleted.AggregateType, depleted.AggregateID)
	}
	if !strings.Contains(string(depleted.Payload), "P1") {
		t.Fatalf("expected payload to reference sku, got %s", depleted.Payload)
	}
}

// Отказ outbox при сохранении заказа всплывает наружу, заказ не появляется.
func TestPlaceOrder_OutboxEnqueueFailurePropagates(t *testing.T) {
	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	enqueueErr := errors.New("outbox unavailable")
	orders := memory.NewOrderRepositoryWithOutbox(&failingOutboxRepository{err: enqueueErr})

	engine := placement.NewEngineWithoutMetrics(customers, products, orders, loggerForTests())

	if err := customers.Create(domain.Customer{ID: "C1"}); err != nil {
		t.Fatalf("seed customer failed: %v", err)
	}
	if err := products.Upsert(domain.StockEntry{SKU: "P1", Quantity: 5, PriceMinor: 100}); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	_, err := engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 1}})
	if !errors.Is(err, enqueueErr) {
		t.Fatalf("expected enqueue error to propagate, got %v", err)
	}

	stored, err := orders.ListByCustomer("C1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected no stored orders after enqueue failure, got %d", len(stored))
	}
}

type failingOutboxRepository struct {
	err error
}

func (r *failingOutboxRepository) Enqueue(domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, r.err
}

func (r *failingOutboxRepository) PullPending(int) ([]domain.OutboxMessage, error) {
	return nil, nil
}

func (r *failingOutboxRepository) Stats() (domain.OutboxStats, error) {
	return domain.OutboxStats{}, nil
}

func (r *failingOutboxRepository) MarkSent(string) error { return nil }

func (r *failingOutboxRepository) MarkFailed(string, string) error { return nil }

type failingOrderRepository struct {
	err error
}

func (r *failingOrderRepository) Create(domain.Order, []domain.OutboxMessage) (domain.Order, error) {
	return domain.Order{}, r.err
}

func (r *failingOrderRepository) Get(string) (domain.Order, error) {
	return domain.Order{}, domain.ErrOrderNotFound
}

func (r *failingOrderRepository) ListByCustomer(string, int) ([]domain.Order, error) {
	return nil, nil
}

func TestPlaceOrder_PersistFailurePropagates(t *testing.T) {
	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	orderErr := errors.New("order store unavailable")
	orders := &failingOrderRepository{err: orderErr}

	engine := placement.NewEngineWithoutMetrics(customers, products, orders, loggerForTests())

	if err := customers.Create(domain.Customer{ID: "C1"}); err != nil {
		t.Fatalf("seed customer failed: %v", err)
	}
	if err := products.Upsert(domain.StockEntry{SKU: "P1", Quantity: 5, PriceMinor: 100}); err != nil {
		t.Fatalf("seed product failed: %v", err)
	}

	// Инфраструктурная ошибка не переводится и не маскируется ядром.
	_, err := engine.PlaceOrder(context.Background(), "C1", []domain.LineRequest{{SKU: "P1", Qty: 1}})
	if !errors.Is(err, orderErr) {
		t.Fatalf("expected infrastructure error to propagate, got %v", err)
	}
}

func TestPlaceOrder_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.seedCustomer(t, "C1")
	f.seedProduct(t, "P1", 10, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.PlaceOrder(ctx, "C1", []domain.LineRequest{{SKU: "P1", Qty: 1}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := f.quantity(t, "P1"); got != 10 {
		t.Fatalf("expected untouched stock, got %d", got)
	}
}
