// Package strategy defines the pluggable signal-generation capability a
// Trader drives, plus two illustrative implementations. Strategies are a
// stated non-goal of the engine — these exist to exercise the Trader loop
// and as templates for real ones.
package strategy

import (
	"wednesday-engine/internal/model"
)

// SignalGenerator inspects one MarketEvent and optionally emits a Signal.
// Implementations own whatever per-instrument state they need; each
// SignalGenerator instance is used by exactly one Trader goroutine, so no
// internal locking is required.
type SignalGenerator interface {
	GenerateSignal(market model.MarketEvent[model.DataKind]) (model.Signal, bool)
}

// closePrice extracts the scalar close a strategy keys on, or ok=false for
// payloads (full order books) that carry none.
func closePrice(market model.MarketEvent[model.DataKind]) (float64, bool) {
	switch payload := market.Payload.(type) {
	case model.PublicTrade:
		return payload.Price, true
	case model.OrderBookL1:
		return payload.VolumeWeightedMidPrice(), true
	case model.Bar:
		return payload.Close, true
	default:
		return 0, false
	}
}
