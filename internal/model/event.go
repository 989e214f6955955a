package model

import "time"

// AggressorSide is the taker side of a PublicTrade: Buy means the taker
// bought (hit the ask); Sell means the taker sold (hit the bid).
type AggressorSide int

const (
	Buy AggressorSide = iota
	Sell
)

func (s AggressorSide) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// PublicTrade is a single executed trade print.
type PublicTrade struct {
	ID        string
	Price     float64
	Quantity  float64
	Aggressor AggressorSide
}

// Level is one price level of an OrderBook side: (price, amount). An amount
// of 0 signals removal of the level on an incremental update.
type Level struct {
	Price  float64
	Amount float64
}

// OrderBookL1 is the best-bid/best-ask snapshot used by lighter-weight
// strategies that don't need full depth.
type OrderBookL1 struct {
	Timestamp    time.Time
	BestBidPrice float64
	BestBidAmt   float64
	BestAskPrice float64
	BestAskAmt   float64
}

// VolumeWeightedMidPrice is the quantity-weighted mid used by
// Position.Update when a market event carries only L1 data.
func (l OrderBookL1) VolumeWeightedMidPrice() float64 {
	totalAmt := l.BestBidAmt + l.BestAskAmt
	if totalAmt == 0 {
		return (l.BestBidPrice + l.BestAskPrice) / 2
	}
	return (l.BestBidPrice*l.BestAskAmt + l.BestAskPrice*l.BestBidAmt) / totalAmt
}

// OrderBook is a timestamped, two-sided local book. Bids sort descending by
// price, asks ascending; invariant: after any upsert-batch, no two levels on
// one side share a price.
type OrderBook struct {
	Timestamp time.Time
	Bids      []Level
	Asks      []Level
}

// Bar is an OHLCV candle closing at Timestamp.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// DataKind is the closed set of payload variants a MarketEvent can carry.
// Go has no sum types, so the variants are distinguished by dynamic type via
// a private marker method — callers dispatch with a type switch on the
// concrete payload.
type DataKind interface {
	isDataKind()
}

func (PublicTrade) isDataKind() {}
func (OrderBookL1) isDataKind() {}
func (OrderBook) isDataKind()   {}
func (Bar) isDataKind()         {}

// MarketEvent is the normalized unit the connectivity layer emits and the
// Trader consumes: when it was generated on the exchange, when it was
// received locally, which market it belongs to, and the payload.
type MarketEvent[T any] struct {
	ExchangeTimestamp time.Time
	LocalTimestamp    time.Time
	Exchange          ExchangeID
	Instrument        Instrument
	Payload           T
}
