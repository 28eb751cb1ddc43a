package inventory

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
)

// DefaultLowStockThreshold — порог остатка, при достижении которого
// списание сопровождается сигналом ProductStockLow.
const DefaultLowStockThreshold = 5

var (
	ledgerDeductions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_inventory_deductions_total",
		Help: "Total number of stock deduction attempts grouped by result.",
	}, []string{"result"})
	ledgerStockLowSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookorder_inventory_stock_low_signals_total",
		Help: "Total number of raised low-stock signals.",
	})
)

// Ledger владеет остатками по ISBN и единственной операцией их уменьшения.
// Сериализацию конкурентных списаний по одному ISBN обеспечивает хранилище:
// Deduct — одно атомарное чтение-изменение-запись внутри транзакции
// вызывающего.
type Ledger struct {
	store     domain.Store
	threshold int32
	logger    *log.Entry
}

// NewLedger создаёт складской сервис. threshold <= 0 заменяется значением
// по умолчанию.
func NewLedger(store domain.Store, threshold int32, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory-ledger")
	}
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Ledger{store: store, threshold: threshold, logger: logger}
}

// Threshold возвращает настроенный порог низкого остатка.
func (l *Ledger) Threshold() int32 {
	return l.threshold
}

// Deduct списывает quantity по isbn через переданный репозиторий. Вызывающий
// отвечает за транзакцию, охватывающую несколько списаний одного заказа:
// ошибка на N-й позиции откатывает списания позиций 1..N-1 вместе с ней.
// Если остаток после списания опускается до порога или ниже, возвращается
// сигнал ProductStockLow для отложенной эмиссии — он ставится в очередь
// транзакции, а не доставляется синхронно.
func (l *Ledger) Deduct(repo domain.InventoryRepository, isbn string, quantity int32) (domain.InventoryItem, *domain.ProductStockLow, error) {
	if quantity <= 0 {
		ledgerDeductions.WithLabelValues("validation").Inc()
		return domain.InventoryItem{}, nil, domain.ErrQuantityInvalid
	}

	item, err := repo.Get(isbn)
	if err != nil {
		ledgerDeductions.WithLabelValues("not_found").Inc()
		l.logger.WithError(err).WithField("isbn", isbn).Warn("inventory item not found for deduction")
		return domain.InventoryItem{}, nil, err
	}

	if err := item.Deduct(quantity); err != nil {
		ledgerDeductions.WithLabelValues("insufficient").Inc()
		l.logger.WithError(err).WithFields(log.Fields{
			"isbn":     isbn,
			"quantity": quantity,
		}).Warn("stock deduction rejected")
		return domain.InventoryItem{}, nil, err
	}

	if err := repo.Save(item); err != nil {
		ledgerDeductions.WithLabelValues("error").Inc()
		return domain.InventoryItem{}, nil, err
	}

	ledgerDeductions.WithLabelValues("ok").Inc()
	l.logger.WithFields(log.Fields{
		"isbn":  isbn,
		"stock": item.Stock,
	}).Debug("stock deducted")

	if item.Stock <= l.threshold {
		ledgerStockLowSignals.Inc()
		event := domain.NewProductStockLow(item.ISBN, item.Stock)
		return item, &event, nil
	}
	return item, nil, nil
}

// GetStock возвращает текущую складскую запись по ISBN.
func (l *Ledger) GetStock(isbn string) (domain.InventoryItem, error) {
	return l.store.Inventory().Get(isbn)
}

// Restock возвращает количество на остаток в собственной транзакции.
func (l *Ledger) Restock(ctx context.Context, isbn string, quantity int32) (domain.InventoryItem, error) {
	var updated domain.InventoryItem
	err := l.store.WithinTx(ctx, func(tx domain.Tx) error {
		item, err := tx.Inventory().Get(isbn)
		if err != nil {
			return err
		}
		if err := item.Restock(quantity); err != nil {
			return err
		}
		if err := tx.Inventory().Save(item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	l.logger.WithFields(log.Fields{
		"isbn":  isbn,
		"stock": updated.Stock,
	}).Info("stock restocked")
	return updated, nil
}
