package app

import (
	"time"

	"github.com/bmeurant/bookorder/internal/domain"
)

// newTestOrder создаёт тестовый заказ для использования в тестах.
func newTestOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:           "test-order-1",
		CustomerName: "Bilbo",
		Status:       domain.OrderStatusPending,
		Lines: []domain.OrderLine{
			{ISBN: "978-0-618-26030-0", Quantity: 1, UnitPriceMinor: 2500},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
