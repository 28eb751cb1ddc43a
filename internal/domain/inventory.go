package domain

import (
	"strings"
	"time"
)

// InventoryItem — складская запись по одной книге. Остаток меняется только
// через Deduct/Restock, отрицательным быть не может ни в какой момент.
type InventoryItem struct {
	// ISBN связывает запись с книгой каталога и служит идентификатором.
	ISBN string
	// Stock — текущий остаток, всегда >= 0.
	Stock int32
	// Version используется хранилищем для optimistic locking.
	Version int64
	// UpdatedAt фиксирует момент последнего изменения остатка.
	UpdatedAt time.Time
}

// NewInventoryItem создаёт складскую запись с проверкой инвариантов.
func NewInventoryItem(isbn string, stock int32) (InventoryItem, error) {
	if strings.TrimSpace(isbn) == "" {
		return InventoryItem{}, ErrISBNRequired
	}
	if stock < 0 {
		return InventoryItem{}, ErrStockNegative
	}

	return InventoryItem{
		ISBN:      isbn,
		Stock:     stock,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// CheckAvailability проверяет, хватает ли остатка под запрошенное количество,
// не изменяя состояние.
func (i *InventoryItem) CheckAvailability(quantity int32) error {
	if quantity <= 0 {
		return ErrQuantityInvalid
	}
	if quantity > i.Stock {
		return &InsufficientStockError{ISBN: i.ISBN, Requested: quantity, Available: i.Stock}
	}
	return nil
}

// Deduct списывает количество с остатка. При нехватке стока остаток
// не меняется и возвращается InsufficientStockError.
func (i *InventoryItem) Deduct(quantity int32) error {
	if err := i.CheckAvailability(quantity); err != nil {
		return err
	}
	i.Stock -= quantity
	i.UpdatedAt = time.Now().UTC()
	return nil
}

// Restock возвращает количество на остаток (компенсация или поставка).
func (i *InventoryItem) Restock(quantity int32) error {
	if quantity <= 0 {
		return ErrQuantityInvalid
	}
	i.Stock += quantity
	i.UpdatedAt = time.Now().UTC()
	return nil
}
