package strategy

import (
	"wednesday-engine/internal/model"
)

// Momentum is the sample strategy: it compares each close against the last
// one it saw and signals with the move. A rise past Threshold signals
// Long + CloseShort; a fall past it signals Short + CloseLong. Which of
// those the Portfolio acts on depends on its open Position — the strategy
// itself is stateless about positions.
type Momentum struct {
	// Threshold is the minimum fractional move (0.01 = 1%) before any
	// signal fires.
	Threshold float64

	lastClose float64
	seeded    bool
}

func NewMomentum(threshold float64) *Momentum {
	return &Momentum{Threshold: threshold}
}

func (s *Momentum) GenerateSignal(market model.MarketEvent[model.DataKind]) (model.Signal, bool) {
	close, ok := closePrice(market)
	if !ok || close <= 0 {
		return model.Signal{}, false
	}

	if !s.seeded {
		s.lastClose = close
		s.seeded = true
		return model.Signal{}, false
	}

	change := (close - s.lastClose) / s.lastClose
	s.lastClose = close

	signals := make(map[model.Decision]model.SignalStrength)
	switch {
	case change >= s.Threshold:
		strength := model.SignalStrength(1.0)
		signals[model.Long] = strength
		signals[model.CloseShort] = strength
	case change <= -s.Threshold:
		strength := model.SignalStrength(1.0)
		signals[model.Short] = strength
		signals[model.CloseLong] = strength
	default:
		return model.Signal{}, false
	}

	return model.Signal{
		Timestamp:  market.ExchangeTimestamp,
		Exchange:   market.Exchange,
		Instrument: market.Instrument,
		Signals:    signals,
		MarketMeta: model.MarketMeta{Close: close, Timestamp: market.ExchangeTimestamp},
	}, true
}
