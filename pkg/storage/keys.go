package storage

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based for range scans, lexicographic ordering
// for time-based trade queries.
const (
	prefixBalance = "bal:"   // one (owner, asset) balance
	prefixTrade   = "trade:" // trade history
)

// balanceKey formats "bal:{address}:{symbol}".
func balanceKey(owner common.Address, asset string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, owner.Hex(), asset))
}

// parseBalanceKey is the inverse of balanceKey, used by the startup scan.
func parseBalanceKey(key []byte) (common.Address, string, error) {
	rest, ok := strings.CutPrefix(string(key), prefixBalance)
	if !ok {
		return common.Address{}, "", fmt.Errorf("not a balance key: %q", key)
	}
	addrHex, asset, ok := strings.Cut(rest, ":")
	if !ok || !common.IsHexAddress(addrHex) {
		return common.Address{}, "", fmt.Errorf("malformed balance key: %q", key)
	}
	return common.HexToAddress(addrHex), asset, nil
}

// tradeKey formats "trade:{symbol}:{timestamp:020d}:{id:020d}". Zero-padded
// so trades sort chronologically within a symbol.
func tradeKey(symbol string, timestamp int64, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%020d", prefixTrade, symbol, timestamp, id))
}

// tradePrefix covers all trades of one symbol.
func tradePrefix(symbol string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, symbol))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
