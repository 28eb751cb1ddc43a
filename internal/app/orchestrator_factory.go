package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/catalog"
	"github.com/bmeurant/bookorder/internal/service/dispatch"
	"github.com/bmeurant/bookorder/internal/service/inventory"
	"github.com/bmeurant/bookorder/internal/service/order"
	"github.com/bmeurant/bookorder/internal/service/subscriber"
)

// orderPipeline — оркестратор заказов вместе с диспетчером его событий.
type orderPipeline struct {
	orchestrator *order.Orchestrator
	dispatcher   *dispatch.Dispatcher
	ledger       *inventory.Ledger
	catalog      *catalog.Service
}

// createOrderPipeline собирает диспетчер событий, складскую книгу и
// оркестратор заказов, подписывая стандартных обработчиков: автоподтверждение
// заказа на OrderCreated и алерт по ProductStockLow.
func createOrderPipeline(cfg Config, store domain.Store, logger *log.Entry) *orderPipeline {
	dispatcher := dispatch.NewDispatcher(
		dispatch.WithLogger(logger.WithField("component", "dispatch")),
		dispatch.WithBufferSize(cfg.DispatchBufferSize),
	)

	ledger := inventory.NewLedger(store, cfg.LowStockThreshold, logger.WithField("component", "inventory"))

	orchestrator := order.NewOrchestrator(
		store,
		ledger,
		dispatcher,
		order.WithRestockOnCancel(cfg.RestockOnCancel),
		order.WithLogger(logger.WithField("component", "order")),
	)

	dispatcher.Subscribe("auto-confirm", subscriber.ConfirmOnCreated(orchestrator, logger.WithField("component", "subscriber")))
	dispatcher.Subscribe("stock-alert", subscriber.StockAlert(logger.WithField("component", "subscriber")))

	return &orderPipeline{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		ledger:       ledger,
		catalog:      catalog.NewService(store, logger.WithField("component", "catalog")),
	}
}
