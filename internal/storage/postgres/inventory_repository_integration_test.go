package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bmeurant/bookorder/internal/domain"
)

func TestInventoryRepository_PostgresGetSaveAndListBelow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Inventory()

	seed := []domain.InventoryItem{
		{ISBN: "978-0-618-26030-0", Stock: 15},
		{ISBN: "978-0-13-235088-4", Stock: 8},
		{ISBN: "978-1-4920-3464-9", Stock: 5},
	}
	for _, item := range seed {
		if err := repo.Save(item); err != nil {
			t.Fatalf("save %s: %v", item.ISBN, err)
		}
	}

	got, err := repo.Get("978-0-618-26030-0")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Stock != 15 {
		t.Fatalf("expected stock 15, got %d", got.Stock)
	}
	if got.Version == 0 {
		t.Fatal("expected non-zero version after initial save")
	}

	got.Stock = 13
	if err := repo.Save(got); err != nil {
		t.Fatalf("save deducted item: %v", err)
	}
	updated, err := repo.Get(got.ISBN)
	if err != nil {
		t.Fatalf("get updated item: %v", err)
	}
	if updated.Stock != 13 {
		t.Fatalf("expected stock 13 after save, got %d", updated.Stock)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("expected version bump: got=%d want=%d", updated.Version, got.Version+1)
	}

	low, err := repo.ListBelow(8)
	if err != nil {
		t.Fatalf("list below threshold: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("expected 2 items at or below threshold 8, got %d", len(low))
	}
	if low[0].Stock > low[1].Stock {
		t.Fatalf("expected list ordered by stock: %+v", low)
	}
}

func TestInventoryRepository_PostgresNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	_, err := store.Inventory().Get("978-0-00-000000-0")
	if !errors.Is(err, domain.ErrInventoryItemNotFound) {
		t.Fatalf("expected ErrInventoryItemNotFound, got %v", err)
	}
}

// Два конкурентных WithinTx списывают с одной складской записи; row lock
// внутри транзакции обязан сериализовать их так, чтобы итоговый остаток
// учёл оба списания.
func TestInventoryRepository_PostgresConcurrentDeductions(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	const isbn = "978-0-618-26030-0"
	if err := store.Inventory().Save(domain.InventoryItem{ISBN: isbn, Stock: 10}); err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	const workers = 4
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- store.WithinTx(ctx, func(tx domain.Tx) error {
				item, err := tx.Inventory().Get(isbn)
				if err != nil {
					return err
				}
				if err := item.Deduct(2); err != nil {
					return err
				}
				return tx.Inventory().Save(item)
			})
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent deduction: %v", err)
		}
	}

	final, err := store.Inventory().Get(isbn)
	if err != nil {
		t.Fatalf("get final item: %v", err)
	}
	if final.Stock != 2 {
		t.Fatalf("expected final stock 2 after %d deductions, got %d", workers, final.Stock)
	}
}
