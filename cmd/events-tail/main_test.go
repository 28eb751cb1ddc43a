package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/IBM/sarama"

	"github.com/bmeurant/bookorder/internal/messaging/kafka"
)

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"events-tail"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestReadConfig_Defaults(t *testing.T) {
	withFlagArgs(t, []string{"-brokers=broker-1:9092"}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 1 || cfg.brokers[0] != "broker-1:9092" {
			t.Fatalf("unexpected brokers: %+v", cfg.brokers)
		}
		if len(cfg.topics) != 3 {
			t.Fatalf("expected all three default topics, got %+v", cfg.topics)
		}
		if cfg.topics[0] != kafka.TopicOrderEvents {
			t.Fatalf("unexpected first topic: %s", cfg.topics[0])
		}
		if cfg.groupID != "bookorder-events-tail" {
			t.Fatalf("unexpected group id: %s", cfg.groupID)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	withFlagArgs(t, []string{"-brokers="}, func() {
		_ = os.Unsetenv("KAFKA_BROKERS")
		if _, err := readConfig(); err == nil || !strings.Contains(err.Error(), "kafka brokers are required") {
			t.Fatalf("expected brokers validation error, got: %v", err)
		}
	})

	withFlagArgs(t, []string{"-brokers=broker:9092", "-topics= , "}, func() {
		if _, err := readConfig(); err == nil || !strings.Contains(err.Error(), "at least one topic is required") {
			t.Fatalf("expected topics validation error, got: %v", err)
		}
	})

	withFlagArgs(t, []string{"-brokers=broker:9092", "-group= "}, func() {
		if _, err := readConfig(); err == nil || !strings.Contains(err.Error(), "group is required") {
			t.Fatalf("expected group validation error, got: %v", err)
		}
	})
}

func TestSplitList(t *testing.T) {
	items := splitList(" a:1, ,b:2 ")
	if len(items) != 2 || items[0] != "a:1" || items[1] != "b:2" {
		t.Fatalf("unexpected split result: %+v", items)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestLogEnvelope_NeverFailsOffsetMarking(t *testing.T) {
	valid := &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderEvents,
		Value: []byte(`{"id":"evt-1","aggregate_type":"order","aggregate_id":"order-1","event_type":"OrderCreated","payload":{"order_id":"order-1"}}`),
	}
	if err := logEnvelope(context.Background(), valid); err != nil {
		t.Fatalf("unexpected error for valid envelope: %v", err)
	}

	raw := &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderEvents,
		Value: []byte("not-json"),
	}
	if err := logEnvelope(context.Background(), raw); err != nil {
		t.Fatalf("unexpected error for raw message: %v", err)
	}
}
