package memory

import (
	"sort"

	"github.com/bmeurant/bookorder/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository поверх session.
type orderRepository struct {
	s session
}

// copyOrder возвращает заказ с независимым слайсом позиций, чтобы избежать
// непредсказуемых мутаций извне.
func copyOrder(order domain.Order) domain.Order {
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return order
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(order domain.Order) error {
	return r.s.do(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return domain.ErrOrderVersionConflict
		}
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(id string) (domain.Order, error) {
	var order domain.Order
	err := r.s.do(func(st *state) error {
		stored, ok := st.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		order = copyOrder(stored)
		return nil
	})
	return order, err
}

// ListByCustomer возвращает заказы покупателя, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(customerName string, limit int) ([]domain.Order, error) {
	var result []domain.Order
	err := r.s.do(func(st *state) error {
		result = make([]domain.Order, 0)
		for _, order := range st.orders {
			if order.CustomerName != customerName {
				continue
			}
			result = append(result, copyOrder(order))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(order domain.Order) error {
	return r.s.do(func(st *state) error {
		current, ok := st.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		if current.Version != order.Version {
			return domain.ErrOrderVersionConflict
		}
		order.Version++
		st.orders[order.ID] = copyOrder(order)
		return nil
	})
}

var _ domain.OrderRepository = (*orderRepository)(nil)
