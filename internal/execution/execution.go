// Package execution turns OrderEvents into FillEvents. Only simulated
// execution is provided: fills happen instantly at the order's MarketMeta
// close with configurable percentage fees, which is enough to drive the
// Portfolio's accounting in backtests and paper sessions.
package execution

import (
	"math"
	"time"

	"wednesday-engine/internal/model"
)

// ExecutionClient generates a FillEvent for an OrderEvent. Simulated
// execution must always succeed; a live implementation would surface venue
// rejections through the error.
type ExecutionClient interface {
	GenerateFill(order model.OrderEvent) (model.FillEvent, error)
}

// FeesPct expresses each fee source as a fraction of gross fill value
// (0.001 = 10 bps).
type FeesPct struct {
	ExchangePct float64
	SlippagePct float64
}

// SimulatedExecution fills every order in full at MarketMeta.Close.
type SimulatedExecution struct {
	Fees FeesPct
}

func NewSimulatedExecution(fees FeesPct) *SimulatedExecution {
	return &SimulatedExecution{Fees: fees}
}

func (e *SimulatedExecution) GenerateFill(order model.OrderEvent) (model.FillEvent, error) {
	fillValueGross := math.Abs(order.Quantity) * order.MarketMeta.Close

	return model.FillEvent{
		Timestamp:      time.Now(),
		Exchange:       order.Exchange,
		Instrument:     order.Instrument,
		MarketMeta:     order.MarketMeta,
		Decision:       order.Decision,
		Quantity:       order.Quantity,
		FillValueGross: fillValueGross,
		Fees: model.Fees{
			Exchange: e.Fees.ExchangePct * fillValueGross,
			Slippage: e.Fees.SlippagePct * fillValueGross,
		},
	}, nil
}
