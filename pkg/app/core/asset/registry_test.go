package asset

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var linkAddr = common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("LINK", linkAddr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !r.IsRegistered("LINK") {
		t.Error("LINK should be registered")
	}
	if r.IsRegistered("AAVE") {
		t.Error("AAVE should not be registered")
	}

	a, err := r.Resolve("LINK")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Symbol != "LINK" || a.Address != linkAddr {
		t.Errorf("resolved %+v", a)
	}

	if _, err := r.Resolve("AAVE"); err == nil {
		t.Error("expected error resolving unknown symbol")
	}
}

func TestRegisterRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", linkAddr); err == nil {
		t.Error("expected error for empty symbol")
	}
	if err := r.Register("LINK", linkAddr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("LINK", linkAddr); err == nil {
		t.Error("expected error for duplicate symbol")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestListSortedBySymbol(t *testing.T) {
	r := NewRegistry()
	for _, sym := range []string{"LINK", "AAVE", "UNI"} {
		if err := r.Register(sym, linkAddr); err != nil {
			t.Fatalf("register %s: %v", sym, err)
		}
	}

	list := r.List()
	want := []string{"AAVE", "LINK", "UNI"}
	for i, a := range list {
		if a.Symbol != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, a.Symbol, want[i])
		}
	}
}
