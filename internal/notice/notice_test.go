package notice

import (
	"context"
	"testing"
)

func TestCollectorDrain(t *testing.T) {
	c := NewCollector()
	c.Notify(context.Background(), LevelSuccess, "Anel adicionado ao carrinho")
	c.Notify(context.Background(), LevelInfo, "")
	c.Notify(context.Background(), LevelInfo, "Carrinho limpo")

	got := c.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(got))
	}
	if got[0].Level != "success" || got[1].Message != "Carrinho limpo" {
		t.Fatalf("unexpected notices %+v", got)
	}
	if again := c.Drain(); len(again) != 0 {
		t.Fatalf("drain should reset, got %+v", again)
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()).(Discard); !ok {
		t.Fatal("expected Discard without an attached notifier")
	}
	c := NewCollector()
	ctx := WithNotifier(context.Background(), c)
	FromContext(ctx).Notify(ctx, LevelWarning, "Seu carrinho está vazio")
	if got := c.Drain(); len(got) != 1 || got[0].Level != "warning" {
		t.Fatalf("unexpected notices %+v", got)
	}
}
