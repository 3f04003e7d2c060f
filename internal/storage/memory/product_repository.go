package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository
// с compare-and-swap семантикой на версии записи остатка.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.StockEntry
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.StockEntry),
	}
}

// FindAllBySKUs возвращает копии записей для перечисленных SKU.
// Отсутствующие SKU молча опускаются из результата.
func (r *productRepositoryInMemory) FindAllBySKUs(skus []string) ([]domain.StockEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.StockEntry, 0, len(skus))
	for _, sku := range skus {
		if entry, ok := r.items[sku]; ok {
			result = append(result, entry)
		}
	}
	return result, nil
}

// UpdateQuantities применяет новые остатки атомарно относительно других
// вызовов: сперва проверяются версии всех записей, и только если все
// совпали, изменения применяются. Любое расхождение — ErrStockConflict,
// и ни одна запись не меняется.
func (r *productRepositoryInMemory) UpdateQuantities(entries []domain.StockEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range entries {
		current, ok := r.items[entry.SKU]
		if !ok {
			return domain.NewProductNotFoundError(entry.SKU)
		}
		if current.Version != entry.Version {
			return domain.ErrStockConflict
		}
		if entry.Quantity < 0 {
			return domain.NewInsufficientStockError(entry.SKU)
		}
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		// Инкрементируем версию при каждой фиксации.
		entry.Version++
		entry.UpdatedAt = now
		r.items[entry.SKU] = entry
	}
	return nil
}

// Upsert создаёт или перезаписывает запись остатка.
func (r *productRepositoryInMemory) Upsert(entry domain.StockEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	r.items[entry.SKU] = entry
	return nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
