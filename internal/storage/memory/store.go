package memory

import (
	"context"
	"sync"

	"github.com/bmeurant/bookorder/internal/domain"
)

// state — все таблицы in-memory хранилища.
type state struct {
	books     map[string]domain.Book
	inventory map[string]domain.InventoryItem
	orders    map[string]domain.Order
	outbox    map[string]*outboxRecord
}

func newState() *state {
	return &state{
		books:     make(map[string]domain.Book),
		inventory: make(map[string]domain.InventoryItem),
		orders:    make(map[string]domain.Order),
		outbox:    make(map[string]*outboxRecord),
	}
}

// clone возвращает копию состояния для staged-транзакции. Значения —
// структуры, поэтому достаточно скопировать записи таблиц; слайсы внутри
// заказов копируются репозиториями на Get/Save.
func (st *state) clone() *state {
	next := &state{
		books:     make(map[string]domain.Book, len(st.books)),
		inventory: make(map[string]domain.InventoryItem, len(st.inventory)),
		orders:    make(map[string]domain.Order, len(st.orders)),
		outbox:    make(map[string]*outboxRecord, len(st.outbox)),
	}
	for k, v := range st.books {
		next.books[k] = v
	}
	for k, v := range st.inventory {
		next.inventory[k] = v
	}
	for k, v := range st.orders {
		next.orders[k] = v
	}
	for k, v := range st.outbox {
		rec := *v
		next.outbox[k] = &rec
	}
	return next
}

// session исполняет операцию репозитория над состоянием с нужной блокировкой.
type session interface {
	do(fn func(st *state) error) error
}

// Store — in-memory реализация domain.Store для локальной разработки и тестов.
// Транзакция работает над копией состояния: коммит подменяет состояние целиком,
// ошибка fn отбрасывает копию. Мьютекс удерживается на всю транзакцию, поэтому
// конкурентные списания по одному ISBN сериализованы.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// do выполняет одиночную операцию под мьютексом хранилища.
func (s *Store) do(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Books возвращает репозиторий каталога вне транзакции.
func (s *Store) Books() domain.BookRepository { return &bookRepository{s: s} }

// Inventory возвращает складской репозиторий вне транзакции.
func (s *Store) Inventory() domain.InventoryRepository { return &inventoryRepository{s: s} }

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{s: s} }

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{s: s} }

// WithinTx выполняет fn над staged-копией состояния. Изменения становятся
// видимыми только после успешного возврата fn; любая ошибка или отмена
// контекста откатывает всё сделанное внутри.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&memTx{st: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.st = staged
	return nil
}

// memTx — транзакционная сессия над staged-состоянием. Блокировка не нужна:
// мьютекс хранилища уже удерживается на время всей транзакции.
type memTx struct {
	st *state
}

func (t *memTx) do(fn func(st *state) error) error { return fn(t.st) }

func (t *memTx) Books() domain.BookRepository           { return &bookRepository{s: t} }
func (t *memTx) Inventory() domain.InventoryRepository  { return &inventoryRepository{s: t} }
func (t *memTx) Orders() domain.OrderRepository         { return &orderRepository{s: t} }
func (t *memTx) Outbox() domain.OutboxRepository        { return &outboxRepository{s: t} }

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*memTx)(nil)
