package memory

import (
	"sort"

	"github.com/bmeurant/bookorder/internal/domain"
)

// inventoryRepository — in-memory реализация InventoryRepository поверх session.
type inventoryRepository struct {
	s session
}

// Get возвращает складскую запись или InventoryItemNotFoundError.
func (r *inventoryRepository) Get(isbn string) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := r.s.do(func(st *state) error {
		stored, ok := st.inventory[isbn]
		if !ok {
			return &domain.InventoryItemNotFoundError{ISBN: isbn}
		}
		item = stored
		return nil
	})
	return item, err
}

// Save перезаписывает складскую запись, инкрементируя версию.
func (r *inventoryRepository) Save(item domain.InventoryItem) error {
	return r.s.do(func(st *state) error {
		if current, ok := st.inventory[item.ISBN]; ok {
			item.Version = current.Version + 1
		}
		st.inventory[item.ISBN] = item
		return nil
	})
}

// ListBelow возвращает записи с остатком не выше threshold, по возрастанию остатка.
func (r *inventoryRepository) ListBelow(threshold int32) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := r.s.do(func(st *state) error {
		items = make([]domain.InventoryItem, 0)
		for _, item := range st.inventory {
			if item.Stock <= threshold {
				items = append(items, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Stock != items[j].Stock {
			return items[i].Stock < items[j].Stock
		}
		return items[i].ISBN < items[j].ISBN
	})
	return items, nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
