// Package engine owns the session: one Trader event loop per Market, all
// sharing one Portfolio, plus the Engine that dispatches external commands
// and produces the session summary.
package engine

import (
	"context"
	"log/slog"

	"wednesday-engine/internal/data"
	"wednesday-engine/internal/event"
	"wednesday-engine/internal/execution"
	"wednesday-engine/internal/model"
	"wednesday-engine/internal/portfolio"
	"wednesday-engine/internal/strategy"
)

// TraderPortfolio is the slice of the Portfolio a Trader drives.
type TraderPortfolio interface {
	portfolio.MarketUpdater
	portfolio.OrderGenerator
	portfolio.FillUpdater
}

// TraderConfig collects the collaborators one Trader exclusively owns (feed,
// strategy, execution) plus the shared Portfolio and the external sink.
type TraderConfig struct {
	Market    model.Market
	Feed      data.FeedGenerator
	Strategy  strategy.SignalGenerator
	Execution execution.ExecutionClient
	Portfolio TraderPortfolio
	EventTx   event.Tx
	Logger    *slog.Logger
}

// Trader runs the per-market event loop: drain commands, pull one feed
// event, then fully drain the internal queue of everything it
// cascades into (Signal, OrderNew, Fill, position and balance updates)
// before pulling the next.
type Trader struct {
	market    model.Market
	feed      data.FeedGenerator
	strategy  strategy.SignalGenerator
	execution execution.ExecutionClient
	portfolio TraderPortfolio
	eventTx   event.Tx
	logger    *slog.Logger

	commands chan Command
	queue    []event.Event
}

// NewTrader validates the config; every collaborator is required.
func NewTrader(cfg TraderConfig) (*Trader, error) {
	switch {
	case cfg.Feed == nil:
		return nil, model.NewEngineBuilderIncompleteError("data")
	case cfg.Strategy == nil:
		return nil, model.NewEngineBuilderIncompleteError("strategy")
	case cfg.Execution == nil:
		return nil, model.NewEngineBuilderIncompleteError("execution")
	case cfg.Portfolio == nil:
		return nil, model.NewEngineBuilderIncompleteError("portfolio")
	case cfg.EventTx == nil:
		return nil, model.NewEngineBuilderIncompleteError("event_tx")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Trader{
		market:    cfg.Market,
		feed:      cfg.Feed,
		strategy:  cfg.Strategy,
		execution: cfg.Execution,
		portfolio: cfg.Portfolio,
		eventTx:   cfg.EventTx,
		logger:    logger.With("component", "trader", "market", cfg.Market),
		commands:  make(chan Command, 16),
	}, nil
}

// Market returns the Market this Trader is bound to.
func (t *Trader) Market() model.Market { return t.market }

// CommandTx is the channel the Engine sends this Trader's commands on.
func (t *Trader) CommandTx() chan<- Command { return t.commands }

// Run blocks until the feed finishes, a Terminate command arrives, ctx is
// cancelled, or a fatal portfolio/execution error occurs. Fatal errors are
// surfaced to the event sink and end only this Trader; the Engine keeps
// running the rest.
//
// The feed is pulled by a feeder goroutine so the loop stays responsive to
// commands while a live feed is quiet; at most one feed event is buffered
// ahead, preserving FIFO processing of each Market event's cascade before
// the next is handled.
func (t *Trader) Run(ctx context.Context) {
	t.logger.Info("trader starting")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedCh := make(chan data.Feed)
	go func() {
		for {
			item := t.feed.Next(runCtx)
			select {
			case feedCh <- item:
			case <-runCtx.Done():
				return
			}
			if item.State == data.FeedFinished {
				return
			}
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			return

		case cmd := <-t.commands:
			if terminate := t.handleCommand(cmd); terminate {
				t.logger.Info("trader terminated by command")
				return
			}

		case item := <-feedCh:
			switch item.State {
			case data.FeedNext:
				t.eventTx.Send(event.Market{Event: item.Event})
				t.queue = append(t.queue, event.Market{Event: item.Event})
			case data.FeedUnhealthy:
				continue
			case data.FeedFinished:
				t.logger.Info("feed finished, trader stopping")
				return
			}
		}

		if err := t.drainQueue(); err != nil {
			t.eventTx.Send(event.TraderError{Market: t.market, Err: err})
			t.logger.Error("fatal error, trader stopping", "error", err)
			return
		}
	}
}

// handleCommand reacts to one command, returning true for Terminate.
// ExitPosition for this Trader's market enqueues a forced-exit signal;
// anything else is ignored at this layer.
func (t *Trader) handleCommand(cmd Command) bool {
	switch c := cmd.(type) {
	case Terminate:
		t.logger.Info("received terminate command", "message", c.Message)
		return true
	case ExitPosition:
		if c.Market == t.market {
			signal := model.NewSignalForceExit(c.Market)
			t.eventTx.Send(event.SignalForceExit{Signal: signal})
			t.queue = append(t.queue, event.SignalForceExit{Signal: signal})
		}
	}
	return false
}

// drainQueue processes the internal queue until empty, cascading each event
// into its derivatives in FIFO order.
func (t *Trader) drainQueue() error {
	for len(t.queue) > 0 {
		next := t.queue[0]
		t.queue = t.queue[1:]

		switch ev := next.(type) {
		case event.Market:
			if err := t.onMarket(ev.Event); err != nil {
				return err
			}
		case event.Signal:
			if err := t.onSignal(ev.Signal); err != nil {
				return err
			}
		case event.SignalForceExit:
			if err := t.onSignalForceExit(ev.Signal); err != nil {
				return err
			}
		case event.OrderNew:
			if err := t.onOrder(ev.Order); err != nil {
				return err
			}
		case event.Fill:
			if err := t.onFill(ev.Fill); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Trader) onMarket(market model.MarketEvent[model.DataKind]) error {
	if signal, ok := t.strategy.GenerateSignal(market); ok {
		t.eventTx.Send(event.Signal{Signal: signal})
		t.queue = append(t.queue, event.Signal{Signal: signal})
	}

	update, err := t.portfolio.UpdateFromMarket(market)
	if err != nil {
		return err
	}
	if update != nil {
		t.eventTx.Send(event.PositionUpdate{Update: *update})
	}
	return nil
}

func (t *Trader) onSignal(signal model.Signal) error {
	order, err := t.portfolio.GenerateOrder(signal)
	if err != nil {
		return err
	}
	if order != nil {
		t.eventTx.Send(event.OrderNew{Order: *order})
		t.queue = append(t.queue, event.OrderNew{Order: *order})
	}
	return nil
}

func (t *Trader) onSignalForceExit(signal model.SignalForceExit) error {
	order, err := t.portfolio.GenerateExitOrder(signal)
	if err != nil {
		return err
	}
	if order != nil {
		t.eventTx.Send(event.OrderNew{Order: *order})
		t.queue = append(t.queue, event.OrderNew{Order: *order})
	}
	return nil
}

func (t *Trader) onOrder(order model.OrderEvent) error {
	fill, err := t.execution.GenerateFill(order)
	if err != nil {
		return err
	}
	t.eventTx.Send(event.Fill{Fill: fill})
	t.queue = append(t.queue, event.Fill{Fill: fill})
	return nil
}

func (t *Trader) onFill(fill model.FillEvent) error {
	sideEffects, err := t.portfolio.UpdateFromFill(fill)
	if err != nil {
		return err
	}
	for _, ev := range sideEffects {
		t.eventTx.Send(ev)
	}
	return nil
}
