package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего имени покупателя.
	ErrCustomerNameRequired = errors.New("customer name must not be blank")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего ISBN.
	ErrISBNRequired = errors.New("isbn must not be blank")
	// Ошибка отсутствующего названия книги.
	ErrTitleRequired = errors.New("title must not be blank")
	// Ошибка отсутствующего автора книги.
	ErrAuthorRequired = errors.New("author must not be blank")
	// Ошибка отрицательной цены книги.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка при некорректном количестве (<= 0).
	ErrQuantityInvalid = errors.New("quantity must be greater than zero")
	// Ошибка отрицательного остатка на складе.
	ErrStockNegative = errors.New("stock must be non-negative")
	// ErrBookNotFound возвращается, если ISBN не зарегистрирован в каталоге.
	ErrBookNotFound = errors.New("book not found")
	// ErrInventoryItemNotFound возвращается, если по ISBN нет складской записи.
	ErrInventoryItemNotFound = errors.New("inventory item not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientStock — запрошено больше, чем доступно на складе.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStateTransition — недопустимый переход статуса заказа.
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// validationErrors перечисляет sentinel-ошибки категории Validation.
var validationErrors = []error{
	ErrCustomerNameRequired,
	ErrLinesRequired,
	ErrISBNRequired,
	ErrTitleRequired,
	ErrAuthorRequired,
	ErrPriceNegative,
	ErrQuantityInvalid,
	ErrStockNegative,
}

// IsValidation проверяет, относится ли ошибка к категории некорректного ввода.
func IsValidation(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsNotFound проверяет, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrInventoryItemNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// BookNotFoundError уточняет ErrBookNotFound конкретным ISBN.
type BookNotFoundError struct {
	ISBN string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("book with isbn %s not found", e.ISBN)
}

// Is позволяет errors.Is сопоставлять ошибку с ErrBookNotFound.
func (e *BookNotFoundError) Is(target error) bool {
	return target == ErrBookNotFound
}

// InventoryItemNotFoundError уточняет ErrInventoryItemNotFound конкретным ISBN.
type InventoryItemNotFoundError struct {
	ISBN string
}

func (e *InventoryItemNotFoundError) Error() string {
	return fmt.Sprintf("inventory item with isbn %s not found", e.ISBN)
}

func (e *InventoryItemNotFoundError) Is(target error) bool {
	return target == ErrInventoryItemNotFound
}

// InsufficientStockError несёт структурированные поля отказа по стоку.
type InsufficientStockError struct {
	ISBN      string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for isbn %s: requested %d, available %d", e.ISBN, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// StateTransitionError описывает отклонённый переход статуса заказа.
type StateTransitionError struct {
	OrderID string
	From    OrderStatus
	Op      string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot %s from status %s", e.OrderID, e.Op, e.From)
}

func (e *StateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
