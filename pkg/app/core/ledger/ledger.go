// Package ledger custodies depositor balances per (owner, asset).
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/pkg/storage"
)

// ErrInsufficientFunds is returned when a debit or withdrawal exceeds the
// owner's balance. The failing operation performs no state change.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrBalanceOverflow is returned when a credit or deposit would push the
// owner's balance past math.MaxInt64. The failing operation performs no
// state change; a wrapped balance must never be written.
var ErrBalanceOverflow = errors.New("balance overflow")

// Ledger is the custody balance book: (owner, asset symbol) -> amount.
// In-memory state is authoritative; an optional Store persists deposits and
// withdrawals as they happen (trade-time transfers are batch-persisted by
// the engine at submission commit).
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[string]int64
	store    *storage.Store // nil in tests and ephemeral deployments
}

// NewLedger creates a ledger. store may be nil; if set, previously
// persisted balances are loaded into memory.
func NewLedger(store *storage.Store) (*Ledger, error) {
	l := &Ledger{
		balances: make(map[common.Address]map[string]int64),
		store:    store,
	}
	if store != nil {
		balances, err := store.LoadBalances()
		if err != nil {
			return nil, fmt.Errorf("failed to load balances: %w", err)
		}
		l.balances = balances
		if l.balances == nil {
			l.balances = make(map[common.Address]map[string]int64)
		}
	}
	return l, nil
}

// BalanceOf returns the owner's balance in asset. Unknown owners and assets
// read as zero.
func (l *Ledger) BalanceOf(owner common.Address, asset string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner][asset]
}

// Credit increases the owner's balance in asset. Fails with
// ErrBalanceOverflow if the new balance would not fit in int64, leaving
// state unchanged. Memory only: the caller owns persistence (see
// storage.Batch).
func (l *Ledger) Credit(owner common.Address, asset string, amount int64) error {
	if amount < 0 {
		panic(fmt.Sprintf("ledger: credit negative amount %d", amount))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(owner, asset, amount)
}

// Debit decreases the owner's balance in asset. Fails with
// ErrInsufficientFunds if the balance is too small, leaving state unchanged.
func (l *Ledger) Debit(owner common.Address, asset string, amount int64) error {
	if amount < 0 {
		panic(fmt.Sprintf("ledger: debit negative amount %d", amount))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitLocked(owner, asset, amount)
}

func (l *Ledger) creditLocked(owner common.Address, asset string, amount int64) error {
	have := l.balances[owner][asset]
	if amount > math.MaxInt64-have {
		return fmt.Errorf("%w: %s has %d %s, credit of %d", ErrBalanceOverflow, owner.Hex(), have, asset, amount)
	}
	if l.balances[owner] == nil {
		l.balances[owner] = make(map[string]int64)
	}
	l.balances[owner][asset] = have + amount
	return nil
}

func (l *Ledger) debitLocked(owner common.Address, asset string, amount int64) error {
	have := l.balances[owner][asset]
	if have < amount {
		return fmt.Errorf("%w: %s has %d %s, need %d", ErrInsufficientFunds, owner.Hex(), have, asset, amount)
	}
	l.balances[owner][asset] = have - amount
	return nil
}

// Deposit credits externally delivered funds and persists the new balance.
func (l *Ledger) Deposit(owner common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.creditLocked(owner, asset, amount); err != nil {
		return err
	}
	return l.persistLocked(owner, asset)
}

// Withdraw debits funds back out of custody and persists the new balance.
// Fails with ErrInsufficientFunds without state change.
func (l *Ledger) Withdraw(owner common.Address, asset string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debitLocked(owner, asset, amount); err != nil {
		return err
	}
	return l.persistLocked(owner, asset)
}

func (l *Ledger) persistLocked(owner common.Address, asset string) error {
	if l.store == nil {
		return nil
	}
	return l.store.SaveBalance(owner, asset, l.balances[owner][asset])
}

// Balances returns a copy of all of the owner's balances.
func (l *Ledger) Balances(owner common.Address) map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int64, len(l.balances[owner]))
	for asset, amount := range l.balances[owner] {
		out[asset] = amount
	}
	return out
}
