package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/inventory"
	"github.com/bmeurant/bookorder/internal/storage/memory"
)

func newLedger(t *testing.T, stock int32, threshold int32) (*inventory.Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	item, err := domain.NewInventoryItem("978-1", stock)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	if err := store.Inventory().Save(item); err != nil {
		t.Fatalf("save item: %v", err)
	}
	return inventory.NewLedger(store, threshold, nil), store
}

func TestLedgerDeduct_Ok(t *testing.T) {
	ledger, store := newLedger(t, 10, 2)

	item, lowEvent, err := ledger.Deduct(store.Inventory(), "978-1", 3)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if item.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", item.Stock)
	}
	if lowEvent != nil {
		t.Fatalf("unexpected low-stock signal at stock %d", item.Stock)
	}
}

func TestLedgerDeduct_RaisesStockLowAtThreshold(t *testing.T) {
	ledger, store := newLedger(t, 5, 3)

	// Остаток падает ровно до порога: сигнал обязателен.
	item, lowEvent, err := ledger.Deduct(store.Inventory(), "978-1", 2)
	if err != nil {
		t.Fatalf("deduct failed: %v", err)
	}
	if item.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", item.Stock)
	}
	if lowEvent == nil {
		t.Fatal("expected low-stock signal")
	}
	if lowEvent.ISBN != "978-1" || lowEvent.CurrentStock != 3 {
		t.Fatalf("unexpected signal: %+v", lowEvent)
	}
}

func TestLedgerDeduct_Insufficient(t *testing.T) {
	ledger, store := newLedger(t, 5, 2)

	_, _, err := ledger.Deduct(store.Inventory(), "978-1", 10)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var insErr *domain.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected structured error, got %T", err)
	}
	if insErr.Requested != 10 || insErr.Available != 5 {
		t.Fatalf("unexpected details: %+v", insErr)
	}

	item, err := ledger.GetStock("978-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if item.Stock != 5 {
		t.Fatalf("expected stock unchanged at 5, got %d", item.Stock)
	}
}

func TestLedgerDeduct_NotFound(t *testing.T) {
	ledger, store := newLedger(t, 5, 2)

	_, _, err := ledger.Deduct(store.Inventory(), "000-0", 1)
	if !errors.Is(err, domain.ErrInventoryItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedgerDeduct_InvalidQuantity(t *testing.T) {
	ledger, store := newLedger(t, 5, 2)

	_, _, err := ledger.Deduct(store.Inventory(), "978-1", 0)
	if !errors.Is(err, domain.ErrQuantityInvalid) {
		t.Fatalf("expected quantity invalid, got %v", err)
	}
}

func TestLedgerRestock(t *testing.T) {
	ledger, _ := newLedger(t, 2, 2)

	item, err := ledger.Restock(context.Background(), "978-1", 3)
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if item.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", item.Stock)
	}

	if _, err := ledger.Restock(context.Background(), "000-0", 1); !errors.Is(err, domain.ErrInventoryItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedgerDefaultThreshold(t *testing.T) {
	ledger := inventory.NewLedger(memory.NewStore(), 0, nil)
	if ledger.Threshold() != inventory.DefaultLowStockThreshold {
		t.Fatalf("expected default threshold, got %d", ledger.Threshold())
	}
}
