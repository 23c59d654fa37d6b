// Package dex wires the matching core into one application facade for the
// API layer and the daemon.
package dex

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/asset"
	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/storage"
)

// App owns the exchange state for the process lifetime: registry, ledger,
// engine. All order flow and wallet traffic passes through it.
type App struct {
	numeraire string
	assets    *asset.Registry
	ledger    *ledger.Ledger
	engine    *engine.Engine
	log       *zap.SugaredLogger

	// OnTrade fires once per executed trade, after the submission that
	// produced it has committed. Used for WS broadcast and the Kafka feed.
	OnTrade func(orderbook.Trade)
}

// NewApp builds the application. store may be nil for ephemeral deployments.
func NewApp(numeraire string, store *storage.Store, log *zap.SugaredLogger) (*App, error) {
	led, err := ledger.NewLedger(store)
	if err != nil {
		return nil, err
	}
	assets := asset.NewRegistry()

	return &App{
		numeraire: numeraire,
		assets:    assets,
		ledger:    led,
		engine:    engine.New(numeraire, assets, led, store),
		log:       log,
	}, nil
}

func (a *App) Numeraire() string { return a.numeraire }

// RegisterAsset adds a tradable token.
func (a *App) RegisterAsset(symbol string, addr common.Address) error {
	if err := a.assets.Register(symbol, addr); err != nil {
		return err
	}
	a.log.Infow("asset_registered", "symbol", symbol, "address", addr.Hex())
	return nil
}

// ListAssets returns all registered assets.
func (a *App) ListAssets() []asset.Asset {
	return a.assets.List()
}

// Deposit credits custody funds for a trader. Routed through the engine so
// wallet traffic serializes with order submissions.
func (a *App) Deposit(owner common.Address, symbol string, amount int64) error {
	return a.engine.Deposit(owner, symbol, amount)
}

// Withdraw moves custody funds back out, serialized like Deposit.
func (a *App) Withdraw(owner common.Address, symbol string, amount int64) error {
	return a.engine.Withdraw(owner, symbol, amount)
}

// Balances returns a trader's balances per asset.
func (a *App) Balances(owner common.Address) map[string]int64 {
	return a.ledger.Balances(owner)
}

// SubmitLimitOrder runs one limit submission through the engine.
func (a *App) SubmitLimitOrder(trader common.Address, side orderbook.Side, symbol string, amount, price int64) (orderbook.Order, error) {
	o, trades, err := a.engine.CreateLimitOrder(trader, side, symbol, amount, price)
	if err != nil {
		return orderbook.Order{}, err
	}
	a.emit(trades)
	return o, nil
}

// SubmitMarketOrder runs one market submission through the engine.
func (a *App) SubmitMarketOrder(trader common.Address, side orderbook.Side, symbol string, amount int64) (orderbook.Order, error) {
	o, trades, err := a.engine.CreateMarketOrder(trader, side, symbol, amount)
	if err != nil {
		return orderbook.Order{}, err
	}
	a.emit(trades)
	return o, nil
}

func (a *App) emit(trades []orderbook.Trade) {
	for _, t := range trades {
		a.log.Infow("fill",
			"symbol", t.Symbol, "price", t.Price, "qty", t.Qty,
			"taker_side", t.TakerSide, "buy_order", t.BuyOrderID, "sell_order", t.SellOrderID)
		if a.OnTrade != nil {
			a.OnTrade(t)
		}
	}
}

// Orderbook returns one side of a symbol's book, best price first.
func (a *App) Orderbook(symbol string, side orderbook.Side) []orderbook.Order {
	return a.engine.GetOrderbook(symbol, side)
}

// RecentTrades returns persisted trade history, newest first.
func (a *App) RecentTrades(symbol string, limit int) ([]*orderbook.Trade, error) {
	return a.engine.RecentTrades(symbol, limit)
}
