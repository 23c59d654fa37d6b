// Package asset tracks the fungible tokens tradable against the numeraire.
package asset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a registered token: a symbol plus its ERC20-style contract
// address. The address is opaque to the matching core; it exists for the
// external transfer mechanics.
type Asset struct {
	Symbol  string         `json:"symbol"`
	Address common.Address `json:"address"`
}

// Registry manages the set of registered assets in a thread-safe manner.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]Asset // symbol -> asset
}

func NewRegistry() *Registry {
	return &Registry{assets: make(map[string]Asset)}
}

// Register adds a new asset. Returns error if the symbol is already taken.
func (r *Registry) Register(symbol string, addr common.Address) error {
	if symbol == "" {
		return fmt.Errorf("cannot register empty symbol")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[symbol]; exists {
		return fmt.Errorf("asset %s already registered", symbol)
	}

	r.assets[symbol] = Asset{Symbol: symbol, Address: addr}
	return nil
}

// IsRegistered checks if a symbol is registered.
func (r *Registry) IsRegistered(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.assets[symbol]
	return exists
}

// Resolve returns the asset handle for a symbol.
func (r *Registry) Resolve(symbol string) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.assets[symbol]
	if !exists {
		return Asset{}, fmt.Errorf("asset %s not found", symbol)
	}
	return a, nil
}

// List returns all registered assets sorted by symbol.
func (r *Registry) List() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	return assets
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
