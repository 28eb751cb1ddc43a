package inventory

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
)

const defaultReportInterval = 30 * time.Second

var lowStockItems = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "bookorder_inventory_low_stock_items",
	Help: "Current number of inventory items at or below the low-stock threshold.",
})

// Reporter периодически сверяет остатки с порогом и публикует размер
// проблемной зоны в метрики и лог. Дополняет событийные сигналы
// ProductStockLow: те срабатывают только в момент списания, reporter
// видит и остатки, которые были низкими с самого начала.
type Reporter struct {
	store     domain.Store
	threshold int32
	interval  time.Duration
	logger    *log.Entry
}

// NewReporter создаёт reporter низких остатков. interval <= 0 заменяется
// значением по умолчанию.
func NewReporter(store domain.Store, threshold int32, interval time.Duration, logger *log.Entry) *Reporter {
	if logger == nil {
		logger = log.WithField("component", "stock-reporter")
	}
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	if interval <= 0 {
		interval = defaultReportInterval
	}
	return &Reporter{store: store, threshold: threshold, interval: interval, logger: logger}
}

// Run выполняет сверку по таймеру до отмены ctx.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.ReportOnce(ctx); err != nil {
		r.logger.WithError(err).Warn("initial stock report failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReportOnce(ctx); err != nil {
				r.logger.WithError(err).Warn("stock report failed")
			}
		}
	}
}

// ReportOnce возвращает записи с остатком не выше порога и обновляет метрики.
func (r *Reporter) ReportOnce(ctx context.Context) ([]domain.InventoryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := r.store.Inventory().ListBelow(r.threshold)
	if err != nil {
		return nil, err
	}

	lowStockItems.Set(float64(len(items)))
	for _, item := range items {
		r.logger.WithFields(log.Fields{
			"isbn":  item.ISBN,
			"stock": item.Stock,
		}).Warn("inventory item below low-stock threshold")
	}
	return items, nil
}
