package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/bmeurant/bookorder/internal/domain"
	"github.com/bmeurant/bookorder/internal/service/catalog"
	"github.com/bmeurant/bookorder/internal/service/order"
)

// demoBook описывает одну позицию демонстрационного каталога.
type demoBook struct {
	isbn       string
	title      string
	author     string
	priceMinor int64
	stock      int32
}

var demoCatalog = []demoBook{
	{"978-0-618-26030-0", "The Lord of the Rings", "J.R.R. Tolkien", 2500, 15},
	{"978-0-13-235088-4", "Clean Code", "Robert C. Martin", 3500, 8},
	{"978-0-13-468599-1", "Effective Java", "Joshua Bloch", 4000, 20},
	{"978-1-4920-3464-9", "Designing Data-Intensive Applications", "Martin Kleppmann", 6000, 5},
}

// seedDemoData наполняет пустой каталог книгами и остатками и создаёт
// пару демонстрационных заказов. Непустой каталог остаётся без изменений.
func seedDemoData(ctx context.Context, store domain.Store, catalogSvc *catalog.Service, orchestrator *order.Orchestrator, logger *log.Entry) error {
	existing, err := catalogSvc.ListBooks()
	if err != nil {
		return fmt.Errorf("list catalog before seeding: %w", err)
	}
	if len(existing) > 0 {
		logger.WithField("books", len(existing)).Info("catalog is not empty, skipping demo seed")
		return nil
	}

	for _, d := range demoCatalog {
		if _, err := catalogSvc.AddBook(d.isbn, d.title, d.author, d.priceMinor); err != nil {
			return fmt.Errorf("seed book %s: %w", d.isbn, err)
		}
	}

	err = store.WithinTx(ctx, func(tx domain.Tx) error {
		for _, d := range demoCatalog {
			item, err := domain.NewInventoryItem(d.isbn, d.stock)
			if err != nil {
				return fmt.Errorf("seed inventory %s: %w", d.isbn, err)
			}
			if err := tx.Inventory().Save(item); err != nil {
				return fmt.Errorf("seed inventory %s: %w", d.isbn, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	demoOrders := []struct {
		customer string
		items    []order.ItemRequest
	}{
		{"Aragorn", []order.ItemRequest{{ISBN: "978-0-618-26030-0", Quantity: 2}}},
		{"Gandalf", []order.ItemRequest{
			{ISBN: "978-0-13-235088-4", Quantity: 1},
			{ISBN: "978-1-4920-3464-9", Quantity: 1},
		}},
	}
	for _, d := range demoOrders {
		created, err := orchestrator.CreateOrder(ctx, d.customer, d.items)
		if err != nil {
			return fmt.Errorf("seed order for %s: %w", d.customer, err)
		}
		logger.WithFields(log.Fields{
			"order_id": created.ID,
			"customer": created.CustomerName,
			"total":    created.TotalMinor(),
		}).Info("demo order created")
	}

	logger.WithField("books", len(demoCatalog)).Info("demo data seeded")
	return nil
}
