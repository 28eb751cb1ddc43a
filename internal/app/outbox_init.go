package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/messaging/kafka"
	"github.com/bmeurant/bookorder/internal/service/outbox"
)

// logPublisher — fallback-публикатор outbox без Kafka: события пишутся
// в лог и помечаются отправленными. Доставка наружу при этом не происходит.
type logPublisher struct {
	logger *log.Entry
}

func (p *logPublisher) Publish(msg domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      msg.ID,
		"aggregate_type": msg.AggregateType,
		"aggregate_id":   msg.AggregateID,
		"event_type":     msg.EventType,
	}).Info("outbox event published to log")
	return nil
}

var _ domain.OutboxPublisher = (*logPublisher)(nil)

// createOutboxRelay собирает воркер публикации из transactional outbox.
// При наличии Kafka producer события уходят в топики заказов и склада,
// невосстановимые ошибки — в DLQ; без Kafka используется лог-публикатор.
func createOutboxRelay(cfg Config, store domain.Store, producer *kafka.Producer, logger *log.Entry) *outbox.Relay {
	relayLogger := logger.WithField("component", "outbox")

	options := []outbox.Option{
		outbox.WithLogger(relayLogger),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}

	var publisher domain.OutboxPublisher
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
		options = append(options, outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)))
	} else {
		publisher = &logPublisher{logger: relayLogger}
	}

	return outbox.NewRelay(store.Outbox(), publisher, options...)
}
