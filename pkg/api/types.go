package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// AssetInfo describes one registered token.
type AssetInfo struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

// OrderEntry is one resting order as exposed by the book snapshot.
type OrderEntry struct {
	ID     uint64 `json:"id"`
	Trader string `json:"trader"`
	Amount int64  `json:"amount"`
	Filled int64  `json:"filled"`
	Price  int64  `json:"price"`
}

// OrderbookSnapshot is the current book for one symbol. Bids sorted high to
// low, asks low to high, ties first-come-first-served.
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []OrderEntry `json:"bids"`
	Asks      []OrderEntry `json:"asks"`
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// TradeInfo is one executed trade.
type TradeInfo struct {
	ID        uint64 `json:"id"`
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	TakerSide string `json:"takerSide"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Timestamp int64  `json:"timestamp"`
}

// BalancesResponse lists one trader's custody balances per asset.
type BalancesResponse struct {
	Address  string           `json:"address"`
	Balances map[string]int64 `json:"balances"`
}

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders.
// Caller identity is taken from the address field; authentication is the
// front-end's concern, not this service's.
type SubmitOrderRequest struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`  // "buy" or "sell"
	Type    string `json:"type"`  // "limit" or "market"
	Amount  int64  `json:"amount"`
	Price   int64  `json:"price"` // required for limit, ignored for market
}

// SubmitOrderResponse reports the post-matching state of the order.
type SubmitOrderResponse struct {
	OrderID uint64 `json:"orderId"`
	Filled  int64  `json:"filled"`
	Amount  int64  `json:"amount"`
	Rested  bool   `json:"rested"` // true if a remainder now sits in the book
}

// WalletRequest is the payload for POST /api/v1/wallet/{deposit,withdraw}.
type WalletRequest struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Amount  int64  `json:"amount"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. ["trades:LINK", "orderbook:LINK"].
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast when a trade executes.
type TradeUpdate struct {
	Type  string    `json:"type"` // "trade"
	Trade TradeInfo `json:"trade"`
}

// OrderbookUpdate is broadcast after a submission changes a book.
type OrderbookUpdate struct {
	Type string            `json:"type"` // "orderbook"
	Book OrderbookSnapshot `json:"book"`
}
