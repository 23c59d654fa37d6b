package orderbook

import "github.com/ethereum/go-ethereum/common"

type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Order is one resting or incoming instruction. Amount is fixed at creation;
// Filled only grows, and 0 <= Filled <= Amount always holds. Market orders
// carry Price == 0 and never rest in a book.
type Order struct {
	ID     uint64
	Trader common.Address
	Side   Side
	Symbol string
	Amount int64
	Filled int64
	Price  int64
}

// Remaining returns unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Amount - o.Filled
}

// Trade is one executed match between a resting and an incoming order.
// Price is always the resting (maker) order's price.
type Trade struct {
	ID          uint64         `json:"id"`
	Symbol      string         `json:"symbol"`
	Price       int64          `json:"price"`
	Qty         int64          `json:"qty"`
	TakerSide   string         `json:"takerSide"`
	Buyer       common.Address `json:"buyer"`
	Seller      common.Address `json:"seller"`
	BuyOrderID  uint64         `json:"buyOrderId"`
	SellOrderID uint64         `json:"sellOrderId"`
	Timestamp   int64          `json:"timestamp"` // Unix milliseconds
}
