package model

import "fmt"

// Market is the top-level unit a Trader is bound to: one exchange, one
// instrument. Engine keeps exactly one Trader per Market.
type Market struct {
	Exchange   ExchangeID
	Instrument Instrument
}

func NewMarket(exchange ExchangeID, instrument Instrument) Market {
	return Market{Exchange: exchange, Instrument: instrument}
}

func (m Market) String() string {
	return fmt.Sprintf("%s-%s", m.Exchange, m.Instrument)
}

// MarketID is the string key used to index per-market statistics in the
// Repository, keeping the repository's keys stable across Position and
// Statistic lookups for the same Market.
type MarketID string

func NewMarketID(m Market) MarketID {
	return MarketID(m.String())
}
