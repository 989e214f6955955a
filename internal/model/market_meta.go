package model

import "time"

// MarketMeta is the (close price, timestamp) snapshot captured at signal or
// order time and propagated through to the resulting fill.
type MarketMeta struct {
	Close     float64
	Timestamp time.Time
}
