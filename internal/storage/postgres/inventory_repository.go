package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bmeurant/bookorder/internal/domain"
)

// inventoryRepository — PostgreSQL-реализация InventoryRepository.
// В транзакционном режиме Get захватывает строку через SELECT ... FOR UPDATE:
// два конкурентных списания по одному ISBN выполняются строго по очереди.
type inventoryRepository struct {
	q         querier
	forUpdate bool
}

// NewInventoryRepository создаёт складской репозиторий поверх подключения store.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{q: store.DB()}
}

func (r *inventoryRepository) Get(isbn string) (domain.InventoryItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT isbn, stock, version, updated_at
		FROM inventory_items
		WHERE isbn = $1
	`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	var item domain.InventoryItem
	err := r.q.QueryRowContext(ctx, query, isbn).Scan(&item.ISBN, &item.Stock, &item.Version, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryItem{}, &domain.InventoryItemNotFoundError{ISBN: isbn}
		}
		return domain.InventoryItem{}, fmt.Errorf("select inventory item: %w", err)
	}
	return item, nil
}

func (r *inventoryRepository) Save(item domain.InventoryItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO inventory_items (isbn, stock, version, updated_at)
		VALUES ($1,$2,0,$3)
		ON CONFLICT (isbn) DO UPDATE
		SET stock = EXCLUDED.stock,
		    version = inventory_items.version + 1,
		    updated_at = EXCLUDED.updated_at
	`,
		item.ISBN, item.Stock, now,
	)
	if err != nil {
		return fmt.Errorf("save inventory item: %w", err)
	}
	return nil
}

func (r *inventoryRepository) ListBelow(threshold int32) ([]domain.InventoryItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT isbn, stock, version, updated_at
		FROM inventory_items
		WHERE stock <= $1
		ORDER BY stock, isbn
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ISBN, &item.Stock, &item.Version, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory items: %w", err)
	}
	return items, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
