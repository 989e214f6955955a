package model

import "time"

// SignalStrength is a finite positive magnitude scaling how strongly a
// strategy holds a given Decision; it is the Allocator's primary input for
// sizing an order.
type SignalStrength float64

// Signal carries every Decision a strategy currently believes in for one
// Market, each with its own strength, plus the MarketMeta snapshot the
// decision was made against.
type Signal struct {
	Timestamp  time.Time
	Exchange   ExchangeID
	Instrument Instrument
	Signals    map[Decision]SignalStrength
	MarketMeta MarketMeta
}

// SignalForceExit is synthesised by the Trader from an ExitPosition command
// (the Engine fans ExitAllPositions out as one ExitPosition per market); it
// skips the strategy entirely
// and asks the Portfolio to generate an unconditional exit order.
type SignalForceExit struct {
	Timestamp  time.Time
	Exchange   ExchangeID
	Instrument Instrument
}

func NewSignalForceExit(market Market) SignalForceExit {
	return SignalForceExit{Timestamp: time.Now(), Exchange: market.Exchange, Instrument: market.Instrument}
}
