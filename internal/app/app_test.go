package app

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/order"
	"github.com/bmeurant/bookorder/internal/storage/memory"
)

func seedTestCatalog(t *testing.T, store domain.Store) {
	t.Helper()

	ctx := context.Background()
	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Books().Save(domain.Book{
			ISBN:       "978-0-618-26030-0",
			Title:      "The Lord of the Rings",
			Author:     "J.R.R. Tolkien",
			PriceMinor: 2500,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return tx.Inventory().Save(domain.InventoryItem{ISBN: "978-0-618-26030-0", Stock: 15})
	})
	if err != nil {
		t.Fatalf("seed test catalog: %v", err)
	}
}

func TestCreateOrderPipeline_OrderIsAutoConfirmed(t *testing.T) {
	store := memory.NewStore()
	seedTestCatalog(t, store)

	pipeline := createOrderPipeline(DefaultConfig(), store, log.WithField("test", "pipeline"))
	defer pipeline.dispatcher.Close()

	created, err := pipeline.orchestrator.CreateOrder(context.Background(), "Frodo", []order.ItemRequest{
		{ISBN: "978-0-618-26030-0", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending right after creation, got %s", created.Status)
	}

	// Автоподтверждение выполняется асинхронно подписчиком на OrderCreated.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := pipeline.orchestrator.GetOrder(context.Background(), created.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if got.Status == domain.OrderStatusConfirmed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("order was not auto-confirmed, status %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	item, err := store.Inventory().Get("978-0-618-26030-0")
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if item.Stock != 13 {
		t.Fatalf("expected stock 13 after order, got %d", item.Stock)
	}
}

func TestCreateOutboxRelay_WithoutKafkaUsesLogPublisher(t *testing.T) {
	store := memory.NewStore()

	cfg := DefaultConfig()
	relay := createOutboxRelay(cfg, store, nil, log.WithField("test", "relay"))

	if _, err := store.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "OrderCreated",
		Payload:       []byte(`{"order_id":"order-1"}`),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	relay.ProcessOnce(context.Background())

	stats, err := store.Outbox().Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty backlog after relay pass, got %d", stats.PendingCount)
	}
}

func TestSeedDemoData_PopulatesEmptyCatalogOnce(t *testing.T) {
	store := memory.NewStore()
	pipeline := createOrderPipeline(DefaultConfig(), store, log.WithField("test", "seed"))
	defer pipeline.dispatcher.Close()

	logger := log.WithField("test", "seed")
	if err := seedDemoData(context.Background(), store, pipeline.catalog, pipeline.orchestrator, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}

	books, err := store.Books().List()
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if len(books) != len(demoCatalog) {
		t.Fatalf("expected %d seeded books, got %d", len(demoCatalog), len(books))
	}

	orders, err := store.Orders().ListByCustomer("Aragorn", 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 demo order for Aragorn, got %d", len(orders))
	}

	// Повторный запуск не должен дублировать данные.
	if err := seedDemoData(context.Background(), store, pipeline.catalog, pipeline.orchestrator, logger); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	books, err = store.Books().List()
	if err != nil {
		t.Fatalf("list books after second seed: %v", err)
	}
	if len(books) != len(demoCatalog) {
		t.Fatalf("expected unchanged catalog, got %d books", len(books))
	}
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.KafkaBrokers = ""
	cfg.SeedDemoData = false

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "sqlite"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected unsupported storage driver error")
	}
}
