package subscriber

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/dispatch"
)

var (
	autoConfirms = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_subscriber_auto_confirms_total",
		Help: "Total number of automatic order confirmations grouped by result.",
	}, []string{"result"})
	stockAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookorder_subscriber_stock_alerts_total",
		Help: "Total number of low-stock alerts raised by the stock alert subscriber.",
	})
)

// OrderConfirmer подтверждает заказ по идентификатору.
type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// ConfirmOnCreated возвращает подписчика, который подтверждает каждый
// созданный заказ. Доставка событий at-least-once, поэтому повторное
// OrderCreated по уже подтверждённому или отменённому заказу не считается
// ошибкой.
func ConfirmOnCreated(confirmer OrderConfirmer, logger *log.Entry) dispatch.Handler {
	if logger == nil {
		logger = log.WithField("component", "auto-confirm-subscriber")
	}

	return func(ctx context.Context, event domain.Event) error {
		created, ok := event.(domain.OrderCreated)
		if !ok {
			return nil
		}

		confirmed, err := confirmer.ConfirmOrder(ctx, created.Order.ID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidStateTransition) {
				autoConfirms.WithLabelValues("skipped").Inc()
				logger.WithField("order_id", created.Order.ID).Debug("order already left pending state")
				return nil
			}
			autoConfirms.WithLabelValues("error").Inc()
			return err
		}

		autoConfirms.WithLabelValues("ok").Inc()
		logger.WithFields(log.Fields{
			"order_id": confirmed.ID,
			"customer": confirmed.CustomerName,
		}).Info("order auto-confirmed")
		return nil
	}
}

// StockAlert возвращает подписчика, поднимающего предупреждение на каждый
// сигнал низкого остатка.
func StockAlert(logger *log.Entry) dispatch.Handler {
	if logger == nil {
		logger = log.WithField("component", "stock-alert-subscriber")
	}

	return func(_ context.Context, event domain.Event) error {
		low, ok := event.(domain.ProductStockLow)
		if !ok {
			return nil
		}

		stockAlerts.Inc()
		logger.WithFields(log.Fields{
			"isbn":  low.ISBN,
			"stock": low.CurrentStock,
		}).Warn("product stock is low, consider restocking")
		return nil
	}
}
