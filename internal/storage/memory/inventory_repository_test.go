package memory_test

import (
	"errors"
	"testing"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/storage/memory"
)

func TestInventoryRepository_GetNotFound(t *testing.T) {
	repo := memory.NewStore().Inventory()

	_, err := repo.Get("missing")
	if !errors.Is(err, domain.ErrInventoryItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var nfErr *domain.InventoryItemNotFoundError
	if !errors.As(err, &nfErr) || nfErr.ISBN != "missing" {
		t.Fatalf("expected structured not found error, got %v", err)
	}
}

func TestInventoryRepository_SaveGet(t *testing.T) {
	repo := memory.NewStore().Inventory()

	item, err := domain.NewInventoryItem("978-1", 5)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	if err := repo.Save(item); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	stored, err := repo.Get("978-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", stored.Stock)
	}

	stored.Stock = 2
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get("978-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", updated.Stock)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestInventoryRepository_ListBelow(t *testing.T) {
	repo := memory.NewStore().Inventory()

	for isbn, stock := range map[string]int32{"978-1": 2, "978-2": 10, "978-3": 4} {
		item, err := domain.NewInventoryItem(isbn, stock)
		if err != nil {
			t.Fatalf("new item: %v", err)
		}
		if err := repo.Save(item); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	items, err := repo.ListBelow(5)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 low-stock items, got %d", len(items))
	}
	if items[0].ISBN != "978-1" || items[1].ISBN != "978-3" {
		t.Fatalf("unexpected order: %+v", items)
	}
}
