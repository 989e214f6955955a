// Package event defines the external event bus a Trader publishes its
// lifecycle onto: every market event consumed, signal generated, order
// raised, fill received, and portfolio side-effect is mirrored here so an
// outside consumer (logger, dashboard, recorder) can observe a session
// without touching Trader internals.
package event

import (
	"log/slog"

	"wednesday-engine/internal/model"
)

// Event is the closed set of things a Trader reports. Consumers switch on
// the concrete type.
type Event interface {
	isEvent()
}

// Market mirrors a MarketEvent the moment the Trader pulls it off its feed.
type Market struct {
	Event model.MarketEvent[model.DataKind]
}

// Signal mirrors a Signal the strategy produced.
type Signal struct {
	Signal model.Signal
}

// SignalForceExit mirrors a forced-exit signal injected by an engine command.
type SignalForceExit struct {
	Signal model.SignalForceExit
}

// OrderNew mirrors an OrderEvent the Portfolio generated.
type OrderNew struct {
	Order model.OrderEvent
}

// Fill mirrors a FillEvent returned by Execution.
type Fill struct {
	Fill model.FillEvent
}

// PositionNew reports a Position opened by an entry fill.
type PositionNew struct {
	Position model.Position
}

// PositionUpdate reports a mark-to-market change on an open Position.
type PositionUpdate struct {
	Update model.PositionUpdate
}

// PositionExit reports a Position closed by an exit fill.
type PositionExit struct {
	Exit model.PositionExit
}

// Balance reports the Portfolio balance after a fill was applied.
type Balance struct {
	Balance model.Balance
}

// TraderError reports a fatal portfolio/execution error that terminated one
// Trader's loop. The Engine keeps running the remaining Traders.
type TraderError struct {
	Market model.Market
	Err    error
}

func (Market) isEvent()          {}
func (Signal) isEvent()          {}
func (SignalForceExit) isEvent() {}
func (OrderNew) isEvent()        {}
func (Fill) isEvent()            {}
func (PositionNew) isEvent()     {}
func (PositionUpdate) isEvent()  {}
func (PositionExit) isEvent()    {}
func (Balance) isEvent()         {}
func (TraderError) isEvent()     {}

// Tx is the sending half of the bus. Send must never block the Trader loop.
type Tx interface {
	Send(event Event)
}

// ChannelTx sends events onto a buffered channel, dropping (with a warning)
// when the consumer falls behind rather than stalling the hot path.
type ChannelTx struct {
	events chan<- Event
	logger *slog.Logger
}

func NewChannelTx(events chan<- Event, logger *slog.Logger) *ChannelTx {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelTx{events: events, logger: logger}
}

func (tx *ChannelTx) Send(event Event) {
	select {
	case tx.events <- event:
	default:
		tx.logger.Warn("event sink full, dropping event")
	}
}
