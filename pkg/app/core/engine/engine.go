// Package engine implements the matching core: order validation, price-time
// matching against per-asset books, and balance settlement through the ledger.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/storage"
	"github.com/uhyunpark/spotdex/pkg/util"
)

// ErrUnknownAsset is returned when an order names an unregistered symbol.
// The order is rejected with no state change.
var ErrUnknownAsset = errors.New("unknown asset")

// maxMatchSteps caps fills per submission. The loop is naturally bounded by
// the opposite side's depth; the cap guards against a runaway book.
const maxMatchSteps = 100_000

// Engine serializes order submissions: each Create* call runs its full
// matching loop to completion under one lock, so every submission is an
// atomic transaction over the books and the ledger.
type Engine struct {
	mu        sync.Mutex
	numeraire string
	assets    *asset.Registry
	ledger    *ledger.Ledger
	store     *storage.Store // nil in tests and ephemeral deployments
	books     map[string]*orderbook.Book
	clock     util.Clock

	nextOrderID uint64
	nextTradeID uint64
}

// New creates an engine. numeraire is the settlement asset symbol all books
// are priced in; it is never registered as a token. store may be nil.
func New(numeraire string, assets *asset.Registry, led *ledger.Ledger, store *storage.Store) *Engine {
	return &Engine{
		numeraire: numeraire,
		assets:    assets,
		ledger:    led,
		store:     store,
		books:     make(map[string]*orderbook.Book),
		clock:     util.RealClock{},
	}
}

// SetClock overrides the trade timestamp source, for tests.
func (e *Engine) SetClock(c util.Clock) { e.clock = c }

// Numeraire returns the settlement asset symbol.
func (e *Engine) Numeraire() string { return e.numeraire }

func (e *Engine) book(symbol string) *orderbook.Book {
	b, ok := e.books[symbol]
	if !ok {
		b = orderbook.NewBook(symbol)
		e.books[symbol] = b
	}
	return b
}

// fill is one planned match: qty at the maker's price against the current
// head (and successors) of the opposite side.
type fill struct {
	qty   int64
	price int64
	maker orderbook.Order // snapshot of the resting order at planning time
}

// CreateLimitOrder validates, matches and (if not fully filled) rests a
// limit order. Returns the final order state and the executed trades.
func (e *Engine) CreateLimitOrder(trader common.Address, side orderbook.Side, symbol string, amount, price int64) (orderbook.Order, []orderbook.Trade, error) {
	if err := validateQty(amount); err != nil {
		return orderbook.Order{}, nil, err
	}
	if price <= 0 {
		return orderbook.Order{}, nil, fmt.Errorf("price must be positive: %d", price)
	}
	if amount > math.MaxInt64/price {
		return orderbook.Order{}, nil, fmt.Errorf("order notional %d*%d overflows", amount, price)
	}
	if !e.assets.IsRegistered(symbol) {
		return orderbook.Order{}, nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Upfront collateral check: worst-case cost for a buy (every fill
	// executes at or below the limit), full amount for a sell.
	if side == orderbook.Buy {
		if have := e.ledger.BalanceOf(trader, e.numeraire); have < amount*price {
			return orderbook.Order{}, nil, fmt.Errorf("%w: buy order needs %d %s, have %d", ledger.ErrInsufficientFunds, amount*price, e.numeraire, have)
		}
	} else {
		if have := e.ledger.BalanceOf(trader, symbol); have < amount {
			return orderbook.Order{}, nil, fmt.Errorf("%w: sell order needs %d %s, have %d", ledger.ErrInsufficientFunds, amount, symbol, have)
		}
	}

	e.nextOrderID++
	o := &orderbook.Order{
		ID:     e.nextOrderID,
		Trader: trader,
		Side:   side,
		Symbol: symbol,
		Amount: amount,
		Price:  price,
	}

	b := e.book(symbol)
	fills := plan(b, o, true)
	trades, err := e.commit(b, o, fills)
	if err != nil {
		return orderbook.Order{}, nil, err
	}

	if o.Remaining() > 0 {
		if err := b.Insert(o); err != nil {
			return orderbook.Order{}, nil, fmt.Errorf("rest remainder of order %d: %w", o.ID, err)
		}
	}
	return *o, trades, nil
}

// CreateMarketOrder validates and matches a market order at whatever prices
// the resting side holds. Any remainder once the opposite side is exhausted
// is dropped; the order never rests.
func (e *Engine) CreateMarketOrder(trader common.Address, side orderbook.Side, symbol string, amount int64) (orderbook.Order, []orderbook.Trade, error) {
	if err := validateQty(amount); err != nil {
		return orderbook.Order{}, nil, err
	}
	if !e.assets.IsRegistered(symbol) {
		return orderbook.Order{}, nil, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if side == orderbook.Sell {
		if have := e.ledger.BalanceOf(trader, symbol); have < amount {
			return orderbook.Order{}, nil, fmt.Errorf("%w: sell order needs %d %s, have %d", ledger.ErrInsufficientFunds, amount, symbol, have)
		}
	}

	e.nextOrderID++
	o := &orderbook.Order{
		ID:     e.nextOrderID,
		Trader: trader,
		Side:   side,
		Symbol: symbol,
		Amount: amount,
	}

	b := e.book(symbol)
	fills := plan(b, o, false)

	// A market buy carries no limit, so its collateral requirement is the
	// exact cost of what the current book can fill. An empty book costs
	// nothing and the submission succeeds as a no-op. A total cost past
	// math.MaxInt64 cannot be covered by any balance.
	if side == orderbook.Buy {
		var cost int64
		for _, f := range fills {
			// Per-fill notional is safe: resting orders passed the
			// notional bound at admission.
			notional := f.qty * f.price
			if notional > math.MaxInt64-cost {
				return orderbook.Order{}, nil, fmt.Errorf("%w: buy order cost exceeds %d %s", ledger.ErrInsufficientFunds, int64(math.MaxInt64), e.numeraire)
			}
			cost += notional
		}
		if have := e.ledger.BalanceOf(trader, e.numeraire); have < cost {
			return orderbook.Order{}, nil, fmt.Errorf("%w: buy order needs %d %s, have %d", ledger.ErrInsufficientFunds, cost, e.numeraire, have)
		}
	}

	trades, err := e.commit(b, o, fills)
	if err != nil {
		return orderbook.Order{}, nil, err
	}
	return *o, trades, nil
}

// plan walks the opposite side best-price-first and computes the fills the
// incoming order would take, without mutating anything. For limit orders the
// walk stops once the resting price no longer satisfies the incoming limit.
func plan(b *orderbook.Book, incoming *orderbook.Order, limit bool) []fill {
	var fills []fill
	remaining := incoming.Remaining()

	for _, resting := range b.Snapshot(incoming.Side.Opposite()) {
		if remaining == 0 || len(fills) >= maxMatchSteps {
			break
		}
		if limit {
			if incoming.Side == orderbook.Buy && resting.Price > incoming.Price {
				break
			}
			if incoming.Side == orderbook.Sell && resting.Price < incoming.Price {
				break
			}
		}
		qty := min(remaining, resting.Remaining())
		fills = append(fills, fill{qty: qty, price: resting.Price, maker: resting})
		remaining -= qty
	}
	return fills
}

// commit applies a planned set of fills: every balance transfer is verified
// fundable first, then ledger state, book state and trade records mutate
// together. A funding shortfall aborts the whole submission with no effect.
func (e *Engine) commit(b *orderbook.Book, incoming *orderbook.Order, fills []fill) ([]orderbook.Trade, error) {
	if len(fills) == 0 {
		return nil, nil
	}

	if err := e.verifyFunding(incoming, fills); err != nil {
		return nil, err
	}

	now := e.clock.Now().UnixMilli()
	opposite := incoming.Side.Opposite()
	trades := make([]orderbook.Trade, 0, len(fills))

	for _, f := range fills {
		buyer, seller := incoming.Trader, f.maker.Trader
		buyID, sellID := incoming.ID, f.maker.ID
		if incoming.Side == orderbook.Sell {
			buyer, seller = f.maker.Trader, incoming.Trader
			buyID, sellID = f.maker.ID, incoming.ID
		}
		cost := f.qty * f.price

		// Settlement at the maker's price. verifyFunding guarantees these
		// transfers succeed; a failure here is a broken invariant.
		if err := e.ledger.Debit(buyer, e.numeraire, cost); err != nil {
			return nil, fmt.Errorf("settle buy side of order %d: %w", incoming.ID, err)
		}
		if err := e.ledger.Debit(seller, incoming.Symbol, f.qty); err != nil {
			return nil, fmt.Errorf("settle sell side of order %d: %w", incoming.ID, err)
		}
		if err := e.ledger.Credit(buyer, incoming.Symbol, f.qty); err != nil {
			return nil, fmt.Errorf("settle buy side of order %d: %w", incoming.ID, err)
		}
		if err := e.ledger.Credit(seller, e.numeraire, cost); err != nil {
			return nil, fmt.Errorf("settle sell side of order %d: %w", incoming.ID, err)
		}

		incoming.Filled += f.qty
		if err := b.MutateHeadFilled(opposite, f.qty); err != nil {
			return nil, err
		}
		if head, ok := b.Best(opposite); ok && head.Remaining() == 0 {
			if err := b.RemoveHead(opposite); err != nil {
				return nil, err
			}
		}

		e.nextTradeID++
		trades = append(trades, orderbook.Trade{
			ID:          e.nextTradeID,
			Symbol:      incoming.Symbol,
			Price:       f.price,
			Qty:         f.qty,
			TakerSide:   incoming.Side.String(),
			Buyer:       buyer,
			Seller:      seller,
			BuyOrderID:  buyID,
			SellOrderID: sellID,
			Timestamp:   now,
		})
	}

	if err := e.persist(incoming, trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// verifyFunding aggregates the gross debit and gross credit per
// (owner, asset) across all planned fills, checks every debit against the
// current balance and every credit against the int64 headroom. Debits only
// lower balances mid-sequence and credits only raise them, so once this
// passes no per-fill transfer in commit can fail.
func (e *Engine) verifyFunding(incoming *orderbook.Order, fills []fill) error {
	type slot struct {
		owner common.Address
		asset string
	}
	debits := make(map[slot]int64)
	credits := make(map[slot]int64)

	// Asset-quantity sums are bounded by the incoming amount; only the
	// numeraire sums can overflow while accumulating.
	for _, f := range fills {
		buyer, seller := incoming.Trader, f.maker.Trader
		if incoming.Side == orderbook.Sell {
			buyer, seller = f.maker.Trader, incoming.Trader
		}
		cost := f.qty * f.price
		if cost > math.MaxInt64-debits[slot{buyer, e.numeraire}] {
			return fmt.Errorf("%w: settlement cost for %s exceeds %d %s", ledger.ErrInsufficientFunds, buyer.Hex(), int64(math.MaxInt64), e.numeraire)
		}
		if cost > math.MaxInt64-credits[slot{seller, e.numeraire}] {
			return fmt.Errorf("%w: settlement proceeds for %s exceed %d %s", ledger.ErrBalanceOverflow, seller.Hex(), int64(math.MaxInt64), e.numeraire)
		}
		debits[slot{buyer, e.numeraire}] += cost
		debits[slot{seller, incoming.Symbol}] += f.qty
		credits[slot{buyer, incoming.Symbol}] += f.qty
		credits[slot{seller, e.numeraire}] += cost
	}

	for s, need := range debits {
		if have := e.ledger.BalanceOf(s.owner, s.asset); have < need {
			return fmt.Errorf("%w: settlement needs %d %s from %s, have %d", ledger.ErrInsufficientFunds, need, s.asset, s.owner.Hex(), have)
		}
	}
	for s, add := range credits {
		if have := e.ledger.BalanceOf(s.owner, s.asset); add > math.MaxInt64-have {
			return fmt.Errorf("%w: settlement credit of %d %s to %s on balance %d", ledger.ErrBalanceOverflow, add, s.asset, s.owner.Hex(), have)
		}
	}
	return nil
}

// persist batches the submission's balance changes and trades into one
// atomic Pebble write.
func (e *Engine) persist(incoming *orderbook.Order, trades []orderbook.Trade) error {
	if e.store == nil || len(trades) == 0 {
		return nil
	}

	batch := e.store.NewBatch()
	defer batch.Close()

	type slot struct {
		owner common.Address
		asset string
	}
	touched := make(map[slot]struct{})
	for i := range trades {
		t := &trades[i]
		touched[slot{t.Buyer, e.numeraire}] = struct{}{}
		touched[slot{t.Buyer, t.Symbol}] = struct{}{}
		touched[slot{t.Seller, e.numeraire}] = struct{}{}
		touched[slot{t.Seller, t.Symbol}] = struct{}{}
		if err := batch.SaveTrade(t); err != nil {
			return fmt.Errorf("batch trade %d: %w", t.ID, err)
		}
	}
	for s := range touched {
		if err := batch.SaveBalance(s.owner, s.asset, e.ledger.BalanceOf(s.owner, s.asset)); err != nil {
			return fmt.Errorf("batch balance %s/%s: %w", s.owner.Hex(), s.asset, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit submission of order %d: %w", incoming.ID, err)
	}
	return nil
}

// Deposit credits external funds into custody. Serialized with order
// submissions: a wallet change never lands inside a settlement sequence,
// so a submission's funding check stays valid through its commit.
func (e *Engine) Deposit(owner common.Address, symbol string, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Deposit(owner, symbol, amount)
}

// Withdraw moves custody funds back out, serialized like Deposit.
func (e *Engine) Withdraw(owner common.Address, symbol string, amount int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Withdraw(owner, symbol, amount)
}

// GetOrderbook returns a consistent snapshot of one side of an asset's book,
// best price first. Unknown or never-traded symbols read as empty.
func (e *Engine) GetOrderbook(symbol string, side orderbook.Side) []orderbook.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[symbol]
	if !ok {
		return nil
	}
	return b.Snapshot(side)
}

// RecentTrades returns up to limit persisted trades for a symbol, newest
// first. Without a store there is no history.
func (e *Engine) RecentTrades(symbol string, limit int) ([]*orderbook.Trade, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.RecentTrades(symbol, limit)
}

func validateQty(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive: %d", amount)
	}
	return nil
}
