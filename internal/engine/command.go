package engine

import "wednesday-engine/internal/model"

// Command is the closed set of external control messages. The same type
// flows on the Engine's command channel and on each Trader's: the Engine
// consumes FetchOpenPositions/ExitAllPositions itself and relays the rest;
// a Trader recognises Terminate and ExitPosition and ignores anything else
// at its layer.
type Command interface {
	isCommand()
}

// FetchOpenPositions asks the Engine for the Portfolio's open positions.
// The reply is sent exactly once on Reply; if the caller has gone away the
// send is dropped with a log line, never blocking the Engine loop.
type FetchOpenPositions struct {
	Reply chan<- OpenPositionsReply
}

// OpenPositionsReply carries the result of a FetchOpenPositions command.
type OpenPositionsReply struct {
	Positions []model.Position
	Err       error
}

// Terminate shuts the session down: the Engine first broadcasts
// ExitPosition to flatten every market, then Terminate to each Trader.
type Terminate struct {
	Message string
}

// ExitAllPositions asks every Trader to flatten its market.
type ExitAllPositions struct{}

// ExitPosition asks one Trader to flatten one market.
type ExitPosition struct {
	Market model.Market
}

func (FetchOpenPositions) isCommand() {}
func (Terminate) isCommand()          {}
func (ExitAllPositions) isCommand()   {}
func (ExitPosition) isCommand()       {}
