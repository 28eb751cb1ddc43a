package domain

import "context"

// BookRepository описывает требования к хранилищу каталога.
type BookRepository interface {
	// Save регистрирует книгу в каталоге или перезаписывает карточку.
	Save(book Book) error
	// FindByISBN возвращает книгу или ErrBookNotFound, если её нет.
	FindByISBN(isbn string) (Book, error)
	// List возвращает все книги каталога.
	List() ([]Book, error)
}

// InventoryRepository описывает требования к хранилищу складских записей.
// Внутри транзакции Get обязан захватывать запись на изменение, чтобы два
// конкурентных списания по одному ISBN сериализовались.
type InventoryRepository interface {
	// Get возвращает складскую запись или ErrInventoryItemNotFound.
	Get(isbn string) (InventoryItem, error)
	// Save применяет изменённый остаток.
	Save(item InventoryItem) error
	// ListBelow возвращает записи с остатком не выше threshold.
	ListBelow(threshold int32) ([]InventoryItem, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByCustomer(customerName string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// Tx предоставляет репозитории, привязанные к одной транзакции хранилища.
type Tx interface {
	Books() BookRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
}

// Store — единица работы поверх транзакционного хранилища. Репозитории
// верхнего уровня выполняют одиночные атомарные операции; WithinTx исполняет
// fn в одной транзакции: её изменения становятся видимыми только после
// коммита, при ошибке откатываются целиком.
type Store interface {
	Tx
	// WithinTx выполняет fn атомарно. Любая ошибка fn откатывает транзакцию.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
