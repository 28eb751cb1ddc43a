package domain

import "time"

// EventDispatcher доставляет события подписчикам. Вызывается строго после
// коммита породившей их транзакции; доставка асинхронна относительно
// вызывающего и изолирована по подписчикам.
type EventDispatcher interface {
	Dispatch(events []Event)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(msg OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
// Enqueue выполняется внутри транзакции заказа, поэтому сообщение попадает
// в outbox только вместе с её коммитом.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
