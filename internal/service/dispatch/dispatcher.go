package dispatch

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
)

const defaultBufferSize = 256

var (
	dispatcherDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookorder_dispatcher_deliveries_total",
		Help: "Total number of event deliveries to subscribers grouped by result.",
	}, []string{"result"})
	dispatcherSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bookorder_dispatcher_subscribers",
		Help: "Current number of registered event subscribers.",
	})
)

// Handler обрабатывает одно доменное событие. Ошибка фиксируется в логах
// и метриках, но не влияет ни на других подписчиков, ни на вызывающего.
type Handler func(ctx context.Context, event domain.Event) error

// Options задаёт параметры диспетчера.
type Options struct {
	Logger     *log.Entry
	BufferSize int
}

// Option настраивает Dispatcher.
type Option func(*Options)

// WithLogger задаёт logger для диспетчера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithBufferSize задаёт ёмкость очереди каждого подписчика.
func WithBufferSize(size int) Option {
	return func(opts *Options) {
		opts.BufferSize = size
	}
}

// subscriber — один независимый получатель с собственной FIFO-очередью.
type subscriber struct {
	name    string
	handler Handler
	events  chan domain.Event
}

// Dispatcher доставляет доменные события подписчикам. Контракт:
//   - Dispatch вызывается строго после коммита породившей события транзакции;
//   - события одной транзакции доставляются каждому подписчику в порядке эмиссии;
//   - подписчики обрабатывают события параллельно друг другу, на отдельных
//     горутинах, вызывающий на обработку не блокируется;
//   - ошибка или panic одного подписчика не влияет на остальных.
type Dispatcher struct {
	logger     *log.Entry
	bufferSize int

	mu     sync.Mutex
	subs   []*subscriber
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер доменных событий.
func NewDispatcher(options ...Option) *Dispatcher {
	opts := Options{BufferSize: defaultBufferSize}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-dispatcher")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}

	return &Dispatcher{
		logger:     logger,
		bufferSize: opts.BufferSize,
	}
}

// Subscribe регистрирует подписчика и запускает его горутину доставки.
func (d *Dispatcher) Subscribe(name string, handler Handler) {
	if handler == nil {
		d.logger.WithField("subscriber", name).Warn("nil handler ignored")
		return
	}

	sub := &subscriber{
		name:    name,
		handler: handler,
		events:  make(chan domain.Event, d.bufferSize),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.WithField("subscriber", name).Warn("subscribe on closed dispatcher ignored")
		return
	}
	d.subs = append(d.subs, sub)
	d.mu.Unlock()

	dispatcherSubscribers.Inc()
	d.wg.Add(1)
	go d.run(sub)
}

// Dispatch передаёт события всем подписчикам. Для каждого подписчика события
// встают в его очередь в переданном порядке; обработка происходит асинхронно.
// Переполненная очередь подписчика не блокирует вызывающего: событие для
// этого подписчика отбрасывается с фиксацией в метриках и логах, очереди
// остальных подписчиков продолжают наполняться.
func (d *Dispatcher) Dispatch(events []domain.Event) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatch on closed dispatcher dropped")
		return
	}
	subs := make([]*subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, sub := range subs {
		for _, event := range events {
			select {
			case sub.events <- event:
			default:
				dispatcherDeliveries.WithLabelValues("dropped").Inc()
				d.logger.WithFields(log.Fields{
					"subscriber":   sub.name,
					"event_type":   event.Type(),
					"aggregate_id": event.AggregateID(),
				}).Warn("subscriber queue is full, event dropped")
			}
		}
	}
}

// Close останавливает приём новых событий и дожидается доставки уже
// поставленных в очереди.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, sub := range d.subs {
		close(sub.events)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run(sub *subscriber) {
	defer d.wg.Done()
	defer dispatcherSubscribers.Dec()

	for event := range sub.events {
		d.deliver(sub, event)
	}
}

// deliver изолирует обработку одного события: ошибки и паники подписчика
// логируются и не распространяются дальше.
func (d *Dispatcher) deliver(sub *subscriber, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			dispatcherDeliveries.WithLabelValues("panic").Inc()
			d.logger.WithFields(log.Fields{
				"subscriber":   sub.name,
				"event_type":   event.Type(),
				"aggregate_id": event.AggregateID(),
				"panic":        r,
			}).Error("subscriber panicked")
		}
	}()

	if err := sub.handler(context.Background(), event); err != nil {
		dispatcherDeliveries.WithLabelValues("failed").Inc()
		d.logger.WithError(err).WithFields(log.Fields{
			"subscriber":   sub.name,
			"event_type":   event.Type(),
			"aggregate_id": event.AggregateID(),
		}).Warn("subscriber failed to handle event")
		return
	}

	dispatcherDeliveries.WithLabelValues("delivered").Inc()
}

var _ domain.EventDispatcher = (*Dispatcher)(nil)
