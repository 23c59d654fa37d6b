package orderbook

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func mustInsert(t *testing.T, b *Book, o *Order) {
	t.Helper()
	if err := b.Insert(o); err != nil {
		t.Fatalf("insert order %d: %v", o.ID, err)
	}
}

func limitOrder(id uint64, trader common.Address, side Side, amount, price int64) *Order {
	return &Order{ID: id, Trader: trader, Side: side, Symbol: "LINK", Amount: amount, Price: price}
}

func TestInsertKeepsBuySideSortedDescending(t *testing.T) {
	b := NewBook("LINK")
	for i, price := range []int64{1, 3, 2, 5} {
		mustInsert(t, b, limitOrder(uint64(i+1), alice, Buy, 5, price))
	}

	snap := b.Snapshot(Buy)
	if len(snap) != 4 {
		t.Fatalf("expected 4 buy orders, got %d", len(snap))
	}
	for i := 0; i < len(snap)-1; i++ {
		if snap[i].Price < snap[i+1].Price {
			t.Errorf("buy side out of order at %d: %d < %d", i, snap[i].Price, snap[i+1].Price)
		}
	}
	if snap[0].Price != 5 {
		t.Errorf("best bid = %d, want 5", snap[0].Price)
	}
}

func TestInsertKeepsSellSideSortedAscending(t *testing.T) {
	b := NewBook("LINK")
	for i, price := range []int64{1, 3, 2} {
		mustInsert(t, b, limitOrder(uint64(i+1), alice, Sell, 10, price))
	}

	snap := b.Snapshot(Sell)
	if len(snap) != 3 {
		t.Fatalf("expected 3 sell orders, got %d", len(snap))
	}
	for i := 0; i < len(snap)-1; i++ {
		if snap[i].Price > snap[i+1].Price {
			t.Errorf("sell side out of order at %d: %d > %d", i, snap[i].Price, snap[i+1].Price)
		}
	}
	if snap[0].Price != 1 {
		t.Errorf("best ask = %d, want 1", snap[0].Price)
	}
}

func TestEqualPricesKeepSubmissionOrder(t *testing.T) {
	b := NewBook("LINK")
	mustInsert(t, b, limitOrder(1, alice, Buy, 5, 2))
	mustInsert(t, b, limitOrder(2, bob, Buy, 5, 2))
	mustInsert(t, b, limitOrder(3, alice, Buy, 5, 2))

	snap := b.Snapshot(Buy)
	for i, want := range []uint64{1, 2, 3} {
		if snap[i].ID != want {
			t.Errorf("position %d: order %d, want %d", i, snap[i].ID, want)
		}
	}
}

func TestInsertRejectsInvalidOrders(t *testing.T) {
	b := NewBook("LINK")
	tests := []struct {
		name  string
		order *Order
	}{
		{"zero amount", limitOrder(1, alice, Buy, 0, 2)},
		{"zero price", limitOrder(2, alice, Buy, 5, 0)},
		{"fully filled", &Order{ID: 3, Trader: alice, Side: Buy, Symbol: "LINK", Amount: 5, Filled: 5, Price: 2}},
		{"wrong symbol", &Order{ID: 4, Trader: alice, Side: Buy, Symbol: "AAVE", Amount: 5, Price: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Insert(tt.order); err == nil {
				t.Errorf("expected insert error, got nil")
			}
		})
	}
	if b.Len(Buy) != 0 {
		t.Errorf("book not empty after rejected inserts: %d", b.Len(Buy))
	}
}

func TestBestOpposite(t *testing.T) {
	b := NewBook("LINK")
	if _, ok := b.BestOpposite(Buy); ok {
		t.Fatal("empty book should have no best opposite")
	}

	mustInsert(t, b, limitOrder(1, alice, Sell, 10, 3))
	mustInsert(t, b, limitOrder(2, alice, Sell, 10, 1))

	best, ok := b.BestOpposite(Buy)
	if !ok {
		t.Fatal("expected a best ask")
	}
	if best.ID != 2 || best.Price != 1 {
		t.Errorf("best ask = order %d @ %d, want order 2 @ 1", best.ID, best.Price)
	}
}

func TestRemoveHead(t *testing.T) {
	b := NewBook("LINK")
	mustInsert(t, b, limitOrder(1, alice, Sell, 10, 1))
	mustInsert(t, b, limitOrder(2, bob, Sell, 10, 2))

	if err := b.RemoveHead(Sell); err != nil {
		t.Fatalf("remove head: %v", err)
	}
	head, ok := b.Best(Sell)
	if !ok || head.ID != 2 {
		t.Fatalf("expected order 2 at head after removal")
	}

	if err := b.RemoveHead(Sell); err != nil {
		t.Fatalf("remove head: %v", err)
	}
	if err := b.RemoveHead(Sell); err == nil {
		t.Error("expected error removing head of empty side")
	}
}

func TestMutateHeadFilled(t *testing.T) {
	b := NewBook("LINK")
	mustInsert(t, b, limitOrder(1, alice, Buy, 10, 2))

	if err := b.MutateHeadFilled(Buy, 4); err != nil {
		t.Fatalf("mutate head: %v", err)
	}
	head, _ := b.Best(Buy)
	if head.Filled != 4 {
		t.Errorf("filled = %d, want 4", head.Filled)
	}

	if err := b.MutateHeadFilled(Buy, 7); err == nil {
		t.Error("expected error overfilling head")
	}
	if err := b.MutateHeadFilled(Sell, 1); err == nil {
		t.Error("expected error mutating empty side")
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	b := NewBook("LINK")
	mustInsert(t, b, limitOrder(1, alice, Buy, 10, 2))

	snap := b.Snapshot(Buy)
	if err := b.MutateHeadFilled(Buy, 5); err != nil {
		t.Fatalf("mutate head: %v", err)
	}

	if snap[0].Filled != 0 {
		t.Errorf("snapshot saw later mutation: filled = %d", snap[0].Filled)
	}
}

func TestOrdersSeqIsRestartable(t *testing.T) {
	b := NewBook("LINK")
	mustInsert(t, b, limitOrder(1, alice, Sell, 10, 1))
	mustInsert(t, b, limitOrder(2, bob, Sell, 10, 2))

	seq := b.Orders(Sell)
	for range 2 { // two full passes over the same sequence
		var ids []uint64
		for o := range seq {
			ids = append(ids, o.ID)
		}
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Fatalf("unexpected iteration order: %v", ids)
		}
	}
}

func BenchmarkInsert(b *testing.B) {
	book := NewBook("LINK")
	for i := 0; b.Loop(); i++ {
		_ = book.Insert(&Order{
			ID:     uint64(i + 1),
			Trader: alice,
			Side:   Buy,
			Symbol: "LINK",
			Amount: 10,
			Price:  int64(i%100 + 1),
		})
	}
}
