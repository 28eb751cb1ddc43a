package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/bmeurant/bookorder/internal/domain"
)

// eventSender отправляет готовое сообщение в topic. Сужен ради тестов.
type eventSender interface {
	Publish(topic, key string, value []byte, headers ...sarama.RecordHeader) error
}

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, выбирая topic
// по типу агрегата: события заказов и складские сигналы идут раздельно.
type OutboxTopicPublisher struct {
	sender       eventSender
	defaultTopic string
	routes       map[string]string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, defaultTopic string) *OutboxTopicPublisher {
	if defaultTopic == "" {
		defaultTopic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		sender:       producer,
		defaultTopic: defaultTopic,
		routes: map[string]string{
			"order":     TopicOrderEvents,
			"inventory": TopicInventoryEvents,
		},
	}
}

// NewDLQPublisher создаёт паблишер, отправляющий всё в dead letter queue.
func NewDLQPublisher(producer *Producer) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{
		sender:       producer,
		defaultTopic: TopicDeadLetterQueue,
	}
}

// Publish оборачивает сообщение в EventEnvelope и отправляет в Kafka.
// Ключ — идентификатор агрегата, поэтому события одного заказа попадают
// в одну partition и сохраняют порядок.
func (p *OutboxTopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.sender == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	envelope, err := json.Marshal(EventEnvelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	topic := p.defaultTopic
	if routed, ok := p.routes[msg.AggregateType]; ok {
		topic = routed
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderEventType), Value: []byte(msg.EventType)},
		{Key: []byte(HeaderAggregateType), Value: []byte(msg.AggregateType)},
	}
	return p.sender.Publish(topic, key, envelope, headers...)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
