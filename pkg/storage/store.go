// Package storage provides Pebble-backed persistence for ledger balances
// and trade history.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
)

// Store wraps a single Pebble database holding all durable exchange state.
// Thread-safe for the way it is used: all writes go through the engine's
// submission lock or the ledger's mutex.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:          64 << 20,                   // 64MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		LBaseMaxBytes:         64 << 20,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBalance persists one (owner, asset) balance.
func (s *Store) SaveBalance(owner common.Address, asset string, amount int64) error {
	if err := s.db.Set(balanceKey(owner, asset), encodeInt64(amount), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance %s/%s: %w", owner.Hex(), asset, err)
	}
	return nil
}

// LoadBalances scans all persisted balances, for startup recovery.
func (s *Store) LoadBalances() (map[common.Address]map[string]int64, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open balance iterator: %w", err)
	}
	defer iter.Close()

	balances := make(map[common.Address]map[string]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		owner, asset, err := parseBalanceKey(iter.Key())
		if err != nil {
			continue // skip malformed entries
		}
		amount, err := decodeInt64(iter.Value())
		if err != nil {
			continue
		}
		if balances[owner] == nil {
			balances[owner] = make(map[string]int64)
		}
		balances[owner][asset] = amount
	}
	return balances, nil
}

// SaveTrade persists a trade record. NoSync: trade history is an audit
// trail, not part of the balance-consistency contract.
func (s *Store) SaveTrade(t *orderbook.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := s.db.Set(tradeKey(t.Symbol, t.Timestamp, t.ID), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades for a symbol, newest first.
func (s *Store) RecentTrades(symbol string, limit int) ([]*orderbook.Trade, error) {
	prefix := tradePrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open trade iterator: %w", err)
	}
	defer iter.Close()

	var trades []*orderbook.Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t orderbook.Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

// Batch groups the writes of one order submission so they commit atomically.
type Batch struct {
	batch *pebble.Batch
}

// NewBatch creates a batch writer.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// SaveBalance adds a balance write to the batch.
func (b *Batch) SaveBalance(owner common.Address, asset string, amount int64) error {
	return b.batch.Set(balanceKey(owner, asset), encodeInt64(amount), nil)
}

// SaveTrade adds a trade write to the batch.
func (b *Batch) SaveTrade(t *orderbook.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.batch.Set(tradeKey(t.Symbol, t.Timestamp, t.ID), data, nil)
}

// Commit writes the batch atomically.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

func decodeInt64(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid int64 encoding: %d bytes", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
