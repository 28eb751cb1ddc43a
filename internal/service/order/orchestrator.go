package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/metrics"
	"github.com/bmeurant/bookorder/internal/service/inventory"
)

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_orders_created_total",
		Help: "Total number of order creation attempts grouped by result.",
	}, []string{"result"})
	ordersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_orders_cancelled_total",
		Help: "Total number of order cancellation attempts grouped by result.",
	}, []string{"result"})
	ordersConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_orders_confirmed_total",
		Help: "Total number of order confirmation attempts grouped by result.",
	}, []string{"result"})
)

// ItemRequest — позиция запроса на создание заказа: что и сколько.
type ItemRequest struct {
	ISBN     string
	Quantity int32
}

// Orchestrator проводит заказ через каталог, склад и хранилище заказов.
// Создание заказа — одна транзакция: списания стока, запись заказа и
// постановка событий в outbox коммитятся вместе или не происходят вовсе.
// Диспетчеру события передаются строго после коммита.
type Orchestrator struct {
	store           domain.Store
	ledger          *inventory.Ledger
	dispatcher      domain.EventDispatcher
	restockOnCancel bool
	metrics         *metrics.OrderMetrics
	logger          *log.Entry
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithRestockOnCancel включает возврат списанного стока при отмене заказа.
func WithRestockOnCancel(enabled bool) Option {
	return func(o *Orchestrator) {
		o.restockOnCancel = enabled
	}
}

// WithLogger задаёт логгер оркестратора.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator создаёт оркестратор заказов.
func NewOrchestrator(store domain.Store, ledger *inventory.Ledger, dispatcher domain.EventDispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		ledger:     ledger,
		dispatcher: dispatcher,
		metrics:    metrics.NewOrderMetrics(),
		logger:     log.WithField("component", "order-orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateOrder атомарно создаёт заказ: проверяет вход, разрешает каждую
// позицию через каталог, списывает сток построчно и сохраняет заказ в
// статусе pending. Ошибка на любом шаге откатывает транзакцию целиком,
// включая уже выполненные списания. OrderCreated и накопленные
// ProductStockLow ставятся в outbox той же транзакцией и доставляются
// подписчикам только после коммита.
func (o *Orchestrator) CreateOrder(ctx context.Context, customerName string, items []ItemRequest) (domain.Order, error) {
	if strings.TrimSpace(customerName) == "" {
		ordersCreated.WithLabelValues("validation").Inc()
		return domain.Order{}, domain.ErrCustomerNameRequired
	}
	if len(items) == 0 {
		ordersCreated.WithLabelValues("validation").Inc()
		return domain.Order{}, domain.ErrLinesRequired
	}
	for _, item := range items {
		if strings.TrimSpace(item.ISBN) == "" {
			ordersCreated.WithLabelValues("validation").Inc()
			return domain.Order{}, domain.ErrISBNRequired
		}
		if item.Quantity <= 0 {
			ordersCreated.WithLabelValues("validation").Inc()
			return domain.Order{}, domain.ErrQuantityInvalid
		}
	}

	o.metrics.OrderStarted()
	started := time.Now()
	defer func() {
		o.metrics.OrderFinished()
		o.metrics.RecordPlaceDuration(time.Since(started))
	}()

	var (
		created domain.Order
		events  []domain.Event
	)
	err := o.store.WithinTx(ctx, func(tx domain.Tx) error {
		events = nil

		// Разрешение позиций прерывается на первом неизвестном ISBN,
		// до каких-либо списаний. Цена снапшотится из каталога.
		resolveStart := time.Now()
		lines := make([]domain.OrderLine, 0, len(items))
		for _, item := range items {
			book, err := tx.Books().FindByISBN(item.ISBN)
			if err != nil {
				return err
			}
			lines = append(lines, domain.OrderLine{
				ISBN:           book.ISBN,
				Quantity:       item.Quantity,
				UnitPriceMinor: book.PriceMinor,
			})
		}
		o.metrics.RecordStageDuration("resolve", time.Since(resolveStart))

		ord, err := domain.NewOrder(customerName, lines)
		if err != nil {
			return err
		}

		deductStart := time.Now()
		var stockLow []domain.Event
		for _, line := range ord.Lines {
			_, low, err := o.ledger.Deduct(tx.Inventory(), line.ISBN, line.Quantity)
			if err != nil {
				return err
			}
			if low != nil {
				stockLow = append(stockLow, *low)
			}
		}
		o.metrics.RecordStageDuration("deduct", time.Since(deductStart))

		persistStart := time.Now()
		if err := tx.Orders().Create(ord); err != nil {
			return err
		}

		events = append(events, domain.NewOrderCreated(ord))
		events = append(events, stockLow...)
		if err := enqueueEvents(tx.Outbox(), events); err != nil {
			return err
		}
		o.metrics.RecordStageDuration("persist", time.Since(persistStart))
		o.metrics.RecordEventsEnqueued(len(events))

		created = ord
		return nil
	})
	if err != nil {
		ordersCreated.WithLabelValues("error").Inc()
		o.logger.WithError(err).WithField("customer", customerName).Warn("order creation rejected")
		return domain.Order{}, err
	}

	ordersCreated.WithLabelValues("ok").Inc()
	o.logger.WithFields(log.Fields{
		"order_id":    created.ID,
		"customer":    created.CustomerName,
		"lines":       len(created.Lines),
		"total_minor": created.TotalMinor(),
	}).Info("order created")

	o.dispatcher.Dispatch(events)
	return created, nil
}

// ConfirmOrder переводит заказ pending -> confirmed. Повторное подтверждение
// возвращает StateTransitionError, состояние заказа не меняется.
func (o *Orchestrator) ConfirmOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var confirmed domain.Order
	err := o.store.WithinTx(ctx, func(tx domain.Tx) error {
		ord, err := tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if err := ord.Confirm(); err != nil {
			return err
		}
		if err := tx.Orders().Save(ord); err != nil {
			return err
		}
		confirmed = ord
		return nil
	})
	if err != nil {
		ordersConfirmed.WithLabelValues("error").Inc()
		return domain.Order{}, err
	}

	ordersConfirmed.WithLabelValues("ok").Inc()
	o.logger.WithField("order_id", confirmed.ID).Info("order confirmed")
	return confirmed, nil
}

// CancelOrder переводит заказ pending -> cancelled и эмитит OrderCancelled
// после коммита. Возврат стока выполняется в той же транзакции, только если
// оркестратор сконфигурирован с WithRestockOnCancel.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var (
		cancelled domain.Order
		events    []domain.Event
	)
	err := o.store.WithinTx(ctx, func(tx domain.Tx) error {
		events = nil

		ord, err := tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if err := ord.Cancel(); err != nil {
			return err
		}
		if err := tx.Orders().Save(ord); err != nil {
			return err
		}

		if o.restockOnCancel {
			for _, line := range ord.Lines {
				item, err := tx.Inventory().Get(line.ISBN)
				if err != nil {
					return err
				}
				if err := item.Restock(line.Quantity); err != nil {
					return err
				}
				if err := tx.Inventory().Save(item); err != nil {
					return err
				}
			}
		}

		events = append(events, domain.NewOrderCancelled(ord))
		if err := enqueueEvents(tx.Outbox(), events); err != nil {
			return err
		}
		o.metrics.RecordEventsEnqueued(len(events))

		cancelled = ord
		return nil
	})
	if err != nil {
		ordersCancelled.WithLabelValues("error").Inc()
		return domain.Order{}, err
	}

	ordersCancelled.WithLabelValues("ok").Inc()
	o.logger.WithFields(log.Fields{
		"order_id": cancelled.ID,
		"restock":  o.restockOnCancel,
	}).Info("order cancelled")

	o.dispatcher.Dispatch(events)
	return cancelled, nil
}

// GetOrder возвращает заказ по идентификатору.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	return o.store.Orders().Get(orderID)
}

// ListOrders возвращает заказы покупателя, не больше limit (0 — без лимита).
func (o *Orchestrator) ListOrders(ctx context.Context, customerName string, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, domain.ErrCustomerNameRequired
	}
	return o.store.Orders().ListByCustomer(customerName, limit)
}

// enqueueEvents сериализует события и ставит их в outbox текущей транзакции.
func enqueueEvents(repo domain.OutboxRepository, events []domain.Event) error {
	for _, ev := range events {
		msg, err := NewOutboxMessage(ev)
		if err != nil {
			return err
		}
		if _, err := repo.Enqueue(msg); err != nil {
			return err
		}
	}
	return nil
}

// NewOutboxMessage сериализует доменное событие в сообщение outbox.
func NewOutboxMessage(ev domain.Event) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s event: %w", ev.Type(), err)
	}

	aggregateType := "order"
	if ev.Type() == domain.EventTypeProductStockLow {
		aggregateType = "inventory"
	}
	return domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   ev.AggregateID(),
		EventType:     string(ev.Type()),
		Payload:       payload,
	}, nil
}
