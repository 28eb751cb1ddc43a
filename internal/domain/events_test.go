package domain_test

import (
	"testing"

	"github.com/bmeurant/bookorder/internal/domain"
)

func TestOrderCreated_SnapshotIsImmutable(t *testing.T) {
	order, err := domain.NewOrder("Alice", []domain.OrderLine{
		{ISBN: "978-1", Quantity: 3, UnitPriceMinor: 1000},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	event := domain.NewOrderCreated(order)

	// Последующая мутация заказа не должна менять уже выпущенное событие.
	order.Lines[0].Quantity = 42
	_ = order.Cancel()

	if event.Order.Lines[0].Quantity != 3 {
		t.Fatalf("event payload mutated: qty %d", event.Order.Lines[0].Quantity)
	}
	if event.Order.Status != domain.OrderStatusPending {
		t.Fatalf("event payload mutated: status %s", event.Order.Status)
	}
	if event.Type() != domain.EventTypeOrderCreated {
		t.Fatalf("unexpected event type %s", event.Type())
	}
	if event.AggregateID() != order.ID {
		t.Fatalf("expected aggregate id %s, got %s", order.ID, event.AggregateID())
	}
}

func TestProductStockLow_Fields(t *testing.T) {
	event := domain.NewProductStockLow("978-1", 2)

	if event.Type() != domain.EventTypeProductStockLow {
		t.Fatalf("unexpected event type %s", event.Type())
	}
	if event.AggregateID() != "978-1" || event.CurrentStock != 2 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.OccurredAt().IsZero() {
		t.Fatal("expected occurred timestamp")
	}
}
