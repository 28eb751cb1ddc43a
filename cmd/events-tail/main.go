// Утилита просмотра событийных топиков. Подключается consumer group'ой к
// перечисленным топикам и печатает каждое событие структурированной записью
// лога. Удобно при отладке публикации outbox и переобработки DLQ.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/messaging/kafka"
)

type config struct {
	brokers []string
	topics  []string
	groupID string
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	consumer, err := kafka.NewConsumer(cfg.brokers, cfg.groupID, cfg.topics, logEnvelope)
	if err != nil {
		fail("create consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"topics": strings.Join(cfg.topics, ","),
		"group":  cfg.groupID,
	}).Info("tailing event topics")

	if err := consumer.Start(ctx); err != nil {
		fail("start consumer: %v", err)
	}

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		log.WithError(err).Warn("consumer shutdown failed")
	}
}

func readConfig() (config, error) {
	var (
		brokersRaw string
		topicsRaw  string
		cfg        config
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&topicsRaw, "topics", defaultTopics(), "comma-separated topics to tail")
	flag.StringVar(&cfg.groupID, "group", "bookorder-events-tail", "consumer group id")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}

	cfg.brokers = splitList(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}
	cfg.topics = splitList(topicsRaw)
	if len(cfg.topics) == 0 {
		return config{}, fmt.Errorf("at least one topic is required")
	}
	if strings.TrimSpace(cfg.groupID) == "" {
		return config{}, fmt.Errorf("group is required")
	}

	return cfg, nil
}

func defaultTopics() string {
	return strings.Join([]string{
		kafka.TopicOrderEvents,
		kafka.TopicInventoryEvents,
		kafka.TopicDeadLetterQueue,
	}, ",")
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	items := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		item := strings.TrimSpace(chunk)
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// logEnvelope печатает событие; сообщения не в формате конверта выводятся
// сырыми байтами, offset помечается в любом случае.
func logEnvelope(_ context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil || envelope.EventType == "" {
		log.WithFields(log.Fields{
			"topic":     message.Topic,
			"partition": message.Partition,
			"offset":    message.Offset,
			"value":     string(message.Value),
		}).Info("raw message")
		return nil
	}

	log.WithFields(log.Fields{
		"topic":          message.Topic,
		"partition":      message.Partition,
		"offset":         message.Offset,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"published_at":   envelope.PublishedAt,
		"payload":        string(envelope.Payload),
	}).Info("event")
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
