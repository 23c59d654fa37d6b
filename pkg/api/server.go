// Package api exposes the exchange over REST and WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/spotdex/pkg/app/core/engine"
	"github.com/uhyunpark/spotdex/pkg/app/core/ledger"
	"github.com/uhyunpark/spotdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/spotdex/pkg/app/dex"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	app    *dex.App
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(app *dex.App, log *zap.SugaredLogger) *Server {
	s := &Server{
		app:    app,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/wallet/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/wallet/withdraw", s.handleWithdraw).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	assets := s.app.ListAssets()
	response := make([]AssetInfo, len(assets))
	for i, a := range assets {
		response[i] = AssetInfo{Symbol: a.Symbol, Address: a.Address.Hex()}
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	respondJSON(w, s.snapshotBook(symbol))
}

func (s *Server) snapshotBook(symbol string) OrderbookSnapshot {
	return OrderbookSnapshot{
		Symbol:    symbol,
		Bids:      toEntries(s.app.Orderbook(symbol, orderbook.Buy)),
		Asks:      toEntries(s.app.Orderbook(symbol, orderbook.Sell)),
		Timestamp: time.Now().UnixMilli(),
	}
}

func toEntries(orders []orderbook.Order) []OrderEntry {
	entries := make([]OrderEntry, len(orders))
	for i, o := range orders {
		entries[i] = OrderEntry{
			ID:     o.ID,
			Trader: o.Trader.Hex(),
			Amount: o.Amount,
			Filled: o.Filled,
			Price:  o.Price,
		}
	}
	return entries
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	trades, err := s.app.RecentTrades(symbol, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade history unavailable", err.Error())
		return
	}

	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = toTradeInfo(*t)
	}
	respondJSON(w, response)
}

func toTradeInfo(t orderbook.Trade) TradeInfo {
	return TradeInfo{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Price:     t.Price,
		Qty:       t.Qty,
		TakerSide: t.TakerSide,
		Buyer:     t.Buyer.Hex(),
		Seller:    t.Seller.Hex(),
		Timestamp: t.Timestamp,
	}
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addrHex := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrHex) {
		respondError(w, http.StatusBadRequest, "invalid address", addrHex)
		return
	}
	addr := common.HexToAddress(addrHex)

	respondJSON(w, BalancesResponse{
		Address:  addr.Hex(),
		Balances: s.app.Balances(addr),
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", req.Address)
		return
	}
	trader := common.HexToAddress(req.Address)

	var side orderbook.Side
	switch req.Side {
	case "buy":
		side = orderbook.Buy
	case "sell":
		side = orderbook.Sell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", req.Side)
		return
	}

	var (
		o   orderbook.Order
		err error
	)
	switch req.Type {
	case "limit":
		o, err = s.app.SubmitLimitOrder(trader, side, req.Symbol, req.Amount, req.Price)
	case "market":
		o, err = s.app.SubmitMarketOrder(trader, side, req.Symbol, req.Amount)
	default:
		respondError(w, http.StatusBadRequest, "invalid order type", req.Type)
		return
	}
	if err != nil {
		respondError(w, statusForError(err), "order rejected", err.Error())
		return
	}

	// Broadcast the post-submission book to subscribers.
	s.BroadcastOrderbook(req.Symbol)

	respondJSON(w, SubmitOrderResponse{
		OrderID: o.ID,
		Filled:  o.Filled,
		Amount:  o.Amount,
		Rested:  req.Type == "limit" && o.Filled < o.Amount,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleWallet(w, r, s.app.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleWallet(w, r, s.app.Withdraw)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request, op func(common.Address, string, int64) error) {
	var req WalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", req.Address)
		return
	}
	addr := common.HexToAddress(req.Address)

	if err := op(addr, req.Symbol, req.Amount); err != nil {
		respondError(w, statusForError(err), "wallet operation failed", err.Error())
		return
	}

	respondJSON(w, BalancesResponse{Address: addr.Hex(), Balances: s.app.Balances(addr)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// ==============================
// WebSocket Broadcasts
// ==============================

// BroadcastTrade pushes one executed trade to subscribers of trades:{symbol}.
func (s *Server) BroadcastTrade(t orderbook.Trade) {
	s.hub.BroadcastToChannel("trades:"+t.Symbol, TradeUpdate{Type: "trade", Trade: toTradeInfo(t)})
}

// BroadcastOrderbook pushes the current book to subscribers of orderbook:{symbol}.
func (s *Server) BroadcastOrderbook(symbol string) {
	s.hub.BroadcastToChannel("orderbook:"+symbol, OrderbookUpdate{Type: "orderbook", Book: s.snapshotBook(symbol)})
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
