package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) FindAllBySKUs(skus []string) ([]domain.StockEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(skus) == 0 {
		return []domain.StockEntry{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sku, price_minor, quantity, version, updated_at
		FROM stock_entries
		WHERE sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, fmt.Errorf("select stock entries: %w", err)
	}
	defer rows.Close()

	result := make([]domain.StockEntry, 0, len(skus))
	for rows.Next() {
		var entry domain.StockEntry
		if err := rows.Scan(&entry.SKU, &entry.PriceMinor, &entry.Quantity, &entry.Version, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock entry: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock entries: %w", err)
	}

	return result, nil
}

// UpdateQuantities фиксирует новые остатки одной транзакцией.
// Каждая запись обновляется условным UPDATE по версии; ноль затронутых
// строк означает проигранную гонку, и вся транзакция откатывается.
func (r *productRepository) UpdateQuantities(entries []domain.StockEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if len(entries) == 0 {
		return nil
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, entry := range entries {
			if entry.Quantity < 0 {
				return domain.NewInsufficientStockError(entry.SKU)
			}

			res, err := tx.ExecContext(ctx, `
				UPDATE stock_entries
				SET price_minor = $1,
				    quantity = $2,
				    version = version + 1,
				    updated_at = $3
				WHERE sku = $4
				  AND version = $5
			`, entry.PriceMinor, entry.Quantity, now, entry.SKU, entry.Version)
			if err != nil {
				return fmt.Errorf("update stock entry %s: %w", entry.SKU, err)
			}

			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected for %s: %w", entry.SKU, err)
			}
			if affected == 0 {
				exists, err := r.stockEntryExistsTx(ctx, tx, entry.SKU)
				if err != nil {
					return err
				}
				if !exists {
					return domain.NewProductNotFoundError(entry.SKU)
				}
				return domain.ErrStockConflict
			}
		}
		return nil
	})
}

func (r *productRepository) Upsert(entry domain.StockEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock_entries (sku, price_minor, quantity, version, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sku) DO UPDATE
		SET price_minor = EXCLUDED.price_minor,
		    quantity = EXCLUDED.quantity,
		    version = stock_entries.version + 1,
		    updated_at = EXCLUDED.updated_at
	`, entry.SKU, entry.PriceMinor, entry.Quantity, entry.Version, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stock entry: %w", err)
	}

	return nil
}

func (r *productRepository) stockEntryExistsTx(ctx context.Context, tx *sql.Tx, sku string) (bool, error) {
	var found string
	err := tx.QueryRowContext(ctx, `SELECT sku FROM stock_entries WHERE sku = $1`, sku).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check stock entry exists: %w", err)
}

var _ domain.ProductRepository = (*productRepository)(nil)
