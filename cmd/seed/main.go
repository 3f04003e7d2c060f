package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

// demoCustomers и demoStock это небольшой набор данных для локальной
// разработки и smoke-тестов размещения.
var demoCustomers = []domain.Customer{
	{ID: "cust-alice", Name: "Alice Johnson", Email: "alice@example.com"},
	{ID: "cust-bob", Name: "Bob Smith", Email: "bob@example.com"},
	{ID: "cust-carol", Name: "Carol White", Email: "carol@example.com"},
}

var demoStock = []domain.StockEntry{
	{SKU: "SKU-TSHIRT", PriceMinor: 1990, Quantity: 100},
	{SKU: "SKU-MUG", PriceMinor: 990, Quantity: 250},
	{SKU: "SKU-POSTER", PriceMinor: 590, Quantity: 40},
	{SKU: "SKU-HOODIE", PriceMinor: 4990, Quantity: 25},
	{SKU: "SKU-STICKER", PriceMinor: 190, Quantity: 1000},
}

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("STOREFRONT_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		fail("apply migrations: %v", err)
	}

	if err := seed(store); err != nil {
		fail("seed failed: %v", err)
	}

	fmt.Printf("seed ok: customers=%d stock_entries=%d\n", len(demoCustomers), len(demoStock))
}

// seed загружает демо-данные идемпотентно: повторный запуск обновляет
// существующие записи вместо дублирования.
func seed(store *postgres.Store) error {
	customers := postgres.NewCustomerRepository(store)
	products := postgres.NewProductRepository(store)

	now := time.Now().UTC()
	for _, customer := range demoCustomers {
		customer.CreatedAt = now
		if err := customers.Create(customer); err != nil {
			return fmt.Errorf("seed customer %s: %w", customer.ID, err)
		}
	}

	for _, entry := range demoStock {
		if err := products.Upsert(entry); err != nil {
			return fmt.Errorf("seed stock entry %s: %w", entry.SKU, err)
		}
	}

	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
