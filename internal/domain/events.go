package domain

import "time"

// EventType именует разновидность доменного события.
type EventType string

const (
	EventTypeOrderCreated    EventType = "OrderCreated"
	EventTypeOrderCancelled  EventType = "OrderCancelled"
	EventTypeProductStockLow EventType = "ProductStockLow"
)

// Event — неизменяемая запись о произошедшем в домене. Снапшот данных
// делается в момент эмиссии: последующие мутации агрегатов на уже
// выпущенное событие не влияют.
type Event interface {
	// Type возвращает тип события для маршрутизации подписчикам.
	Type() EventType
	// AggregateID возвращает идентификатор затронутого агрегата.
	AggregateID() string
	// OccurredAt возвращает момент эмиссии события.
	OccurredAt() time.Time
}

// OrderCreated эмитится после создания заказа, строго после коммита транзакции.
type OrderCreated struct {
	Order    Order
	Occurred time.Time
}

// NewOrderCreated снимает снапшот заказа в момент эмиссии.
func NewOrderCreated(order Order) OrderCreated {
	order.Lines = append([]OrderLine(nil), order.Lines...)
	return OrderCreated{Order: order, Occurred: time.Now().UTC()}
}

func (e OrderCreated) Type() EventType       { return EventTypeOrderCreated }
func (e OrderCreated) AggregateID() string   { return e.Order.ID }
func (e OrderCreated) OccurredAt() time.Time { return e.Occurred }

// OrderCancelled эмитится после отмены заказа.
type OrderCancelled struct {
	Order    Order
	Occurred time.Time
}

// NewOrderCancelled снимает снапшот заказа в момент эмиссии.
func NewOrderCancelled(order Order) OrderCancelled {
	order.Lines = append([]OrderLine(nil), order.Lines...)
	return OrderCancelled{Order: order, Occurred: time.Now().UTC()}
}

func (e OrderCancelled) Type() EventType       { return EventTypeOrderCancelled }
func (e OrderCancelled) AggregateID() string   { return e.Order.ID }
func (e OrderCancelled) OccurredAt() time.Time { return e.Occurred }

// ProductStockLow эмитится, когда остаток после списания опускается
// до настроенного порога или ниже.
type ProductStockLow struct {
	ISBN         string
	CurrentStock int32
	Occurred     time.Time
}

// NewProductStockLow фиксирует остаток на момент списания.
func NewProductStockLow(isbn string, currentStock int32) ProductStockLow {
	return ProductStockLow{ISBN: isbn, CurrentStock: currentStock, Occurred: time.Now().UTC()}
}

func (e ProductStockLow) Type() EventType       { return EventTypeProductStockLow }
func (e ProductStockLow) AggregateID() string   { return e.ISBN }
func (e ProductStockLow) OccurredAt() time.Time { return e.Occurred }
