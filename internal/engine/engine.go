package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wednesday-engine/internal/model"
	"wednesday-engine/internal/statistic"
)

// terminateFlattenDelay is how long the Engine waits between broadcasting
// ExitPosition (to flatten every market) and Terminate on session shutdown.
const terminateFlattenDelay = 1 * time.Second

// EnginePortfolio is the slice of the Portfolio the Engine itself queries:
// open positions for command replies, exited positions and per-market
// statistics for the session summary.
type EnginePortfolio interface {
	OpenPositions() ([]model.Position, error)
	ExitedPositions() ([]model.Position, error)
	Statistics(id model.MarketID) (statistic.PnLReturnSummary, error)
}

// SessionSummary combines every market's running statistics with a "Total"
// summary regenerated from all exited positions.
type SessionSummary struct {
	EngineID  uuid.UUID
	PerMarket map[model.MarketID]statistic.PnLReturnSummary
	Total     statistic.PnLReturnSummary
}

// Config collects what the Engine needs; Traders must already be built.
type Config struct {
	EngineID  uuid.UUID
	Portfolio EnginePortfolio
	Traders   []*Trader
	Logger    *slog.Logger
}

// Engine owns the Traders: it runs each on its own goroutine, relays
// external commands to them, and produces the session summary once all have
// exited.
type Engine struct {
	engineID  uuid.UUID
	portfolio EnginePortfolio
	traders   map[model.Market]*Trader
	commands  chan Command
	logger    *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Portfolio == nil:
		return nil, model.NewEngineBuilderIncompleteError("portfolio")
	case len(cfg.Traders) == 0:
		return nil, model.NewEngineBuilderIncompleteError("traders")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	traders := make(map[model.Market]*Trader, len(cfg.Traders))
	for _, trader := range cfg.Traders {
		traders[trader.Market()] = trader
	}

	return &Engine{
		engineID:  cfg.EngineID,
		portfolio: cfg.Portfolio,
		traders:   traders,
		commands:  make(chan Command, 16),
		logger:    logger.With("component", "engine", "engine_id", cfg.EngineID),
	}, nil
}

// CommandTx is the channel external callers send Engine commands on.
func (e *Engine) CommandTx() chan<- Command { return e.commands }

// Run spawns every Trader, services external commands until all Traders have
// exited (or a Terminate drains them), then returns the session summary.
func (e *Engine) Run(ctx context.Context) SessionSummary {
	e.logger.Info("engine starting", "traders", len(e.traders))

	var wg sync.WaitGroup
	for _, trader := range e.traders {
		wg.Add(1)
		trader := trader
		go func() {
			defer wg.Done()
			trader.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			e.logger.Info("all traders have stopped")
			break loop

		case <-ctx.Done():
			e.logger.Info("context cancelled, draining traders")
			break loop

		case cmd := <-e.commands:
			switch c := cmd.(type) {
			case FetchOpenPositions:
				e.fetchOpenPositions(c)

			case Terminate:
				e.logger.Info("terminate command received", "message", c.Message)
				e.broadcast(ExitAllPositions{})
				select {
				case <-time.After(terminateFlattenDelay):
				case <-ctx.Done():
				}
				e.broadcast(c)
				break loop

			case ExitAllPositions:
				e.broadcast(c)

			case ExitPosition:
				e.route(c)
			}
		}
	}

	// Traders that received Terminate (or whose feeds finish) exit on their
	// own; wait for the stragglers before summarising.
	<-done

	return e.generateSessionSummary()
}

func (e *Engine) fetchOpenPositions(cmd FetchOpenPositions) {
	positions, err := e.portfolio.OpenPositions()
	select {
	case cmd.Reply <- OpenPositionsReply{Positions: positions, Err: err}:
	default:
		e.logger.Warn("open positions reply dropped, receiver gone")
	}
}

// broadcast relays a command to every Trader. Terminate is sent as-is;
// ExitAllPositions is fanned out as one ExitPosition per market.
func (e *Engine) broadcast(cmd Command) {
	for market, trader := range e.traders {
		var out Command = cmd
		if _, ok := cmd.(ExitAllPositions); ok {
			out = ExitPosition{Market: market}
		}
		select {
		case trader.CommandTx() <- out:
		default:
			e.logger.Warn("trader command channel full, command dropped", "market", market)
		}
	}
}

func (e *Engine) route(cmd ExitPosition) {
	trader, ok := e.traders[cmd.Market]
	if !ok {
		e.logger.Warn("exit position for unknown market", "market", cmd.Market)
		return
	}
	select {
	case trader.CommandTx() <- cmd:
	default:
		e.logger.Warn("trader command channel full, command dropped", "market", cmd.Market)
	}
}

func (e *Engine) generateSessionSummary() SessionSummary {
	summary := SessionSummary{
		EngineID:  e.engineID,
		PerMarket: make(map[model.MarketID]statistic.PnLReturnSummary, len(e.traders)),
	}

	var earliest time.Time
	for market := range e.traders {
		id := model.NewMarketID(market)
		stats, err := e.portfolio.Statistics(id)
		if err != nil {
			e.logger.Error("failed to fetch market statistics", "market", market, "error", err)
			continue
		}
		summary.PerMarket[id] = stats
		if earliest.IsZero() || stats.StartTime.Before(earliest) {
			earliest = stats.StartTime
		}
	}

	total := statistic.NewPnLReturnSummary(earliest)
	exited, err := e.portfolio.ExitedPositions()
	if err != nil {
		e.logger.Error("failed to fetch exited positions for total summary", "error", err)
	} else {
		total.GenerateSummary(exited)
	}
	summary.Total = total

	e.logger.Info("session summary generated",
		"markets", len(summary.PerMarket),
		"total_trades", total.Total.Count,
		"win_rate", total.WinRate(),
	)
	return summary
}
