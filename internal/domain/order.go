package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, сток уже списан, подтверждение не выполнено.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — заказ финализирован; терминальный статус.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusCancelled — заказ отменён до подтверждения; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusDelivered зарезервирован под будущий этап доставки.
	OrderStatusDelivered OrderStatus = "delivered"
)

// OrderLine — одна позиция заказа. Цена снапшотится в момент создания заказа
// и не зависит от последующих изменений каталога.
type OrderLine struct {
	ISBN           string
	Quantity       int32
	UnitPriceMinor int64
}

// Order агрегирует состояние заказа и его позиции. Идентичность — OrderID,
// равенство заказов определяется только по нему.
type Order struct {
	ID           string
	CustomerName string
	Status       OrderStatus
	Lines        []OrderLine
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder создаёт заказ в статусе pending, проверяя входные данные.
func NewOrder(customerName string, lines []OrderLine) (Order, error) {
	if strings.TrimSpace(customerName) == "" {
		return Order{}, ErrCustomerNameRequired
	}
	if len(lines) == 0 {
		return Order{}, ErrLinesRequired
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ISBN) == "" {
			return Order{}, ErrISBNRequired
		}
		if line.Quantity <= 0 {
			return Order{}, ErrQuantityInvalid
		}
		if line.UnitPriceMinor < 0 {
			return Order{}, ErrPriceNegative
		}
	}

	now := time.Now().UTC()
	return Order{
		ID:           uuid.NewString(),
		CustomerName: customerName,
		Status:       OrderStatusPending,
		Lines:        append([]OrderLine(nil), lines...),
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Confirm переводит заказ pending -> confirmed. Любой другой исходный статус
// отклоняется с StateTransitionError.
func (o *Order) Confirm() error {
	if o.Status != OrderStatusPending {
		return &StateTransitionError{OrderID: o.ID, From: o.Status, Op: "confirm"}
	}
	o.Status = OrderStatusConfirmed
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel переводит заказ pending -> cancelled. Повторная отмена и отмена
// подтверждённого заказа отклоняются.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending {
		return &StateTransitionError{OrderID: o.ID, From: o.Status, Op: "cancel"}
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// TotalMinor возвращает сумму заказа по снапшоту цен позиций.
func (o *Order) TotalMinor() int64 {
	var total int64
	for _, line := range o.Lines {
		total += int64(line.Quantity) * line.UnitPriceMinor
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.CustomerName) == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	for _, line := range o.Lines {
		if strings.TrimSpace(line.ISBN) == "" {
			errs = append(errs, ErrISBNRequired)
		}
		if line.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrPriceNegative)
		}
	}

	return errs
}
