package strategy

import (
	"wednesday-engine/internal/model"
)

// TickRun signals after a run of consecutive same-direction ticks: RunLength
// upticks in a row signal Long + CloseShort, the mirror for downticks. Ticks
// that repeat the previous price reset nothing but extend no run.
type TickRun struct {
	RunLength int

	lastClose float64
	upRun     int
	downRun   int
}

func NewTickRun(runLength int) *TickRun {
	if runLength < 1 {
		runLength = 1
	}
	return &TickRun{RunLength: runLength}
}

func (s *TickRun) GenerateSignal(market model.MarketEvent[model.DataKind]) (model.Signal, bool) {
	close, ok := closePrice(market)
	if !ok || close <= 0 {
		return model.Signal{}, false
	}

	if s.lastClose == 0 {
		s.lastClose = close
		return model.Signal{}, false
	}

	switch {
	case close > s.lastClose:
		s.upRun++
		s.downRun = 0
	case close < s.lastClose:
		s.downRun++
		s.upRun = 0
	}
	s.lastClose = close

	signals := make(map[model.Decision]model.SignalStrength)
	switch {
	case s.upRun >= s.RunLength:
		s.upRun = 0
		signals[model.Long] = 1.0
		signals[model.CloseShort] = 1.0
	case s.downRun >= s.RunLength:
		s.downRun = 0
		signals[model.Short] = 1.0
		signals[model.CloseLong] = 1.0
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
