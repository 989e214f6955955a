package portfolio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wednesday-engine/internal/event"
	"wednesday-engine/internal/model"
	"wednesday-engine/internal/oms"
	"wednesday-engine/internal/statistic"
)

// minimumOrderBalance is the floor on available cash below which no new
// entry orders are generated.
const minimumOrderBalance = 1.0

// MarketUpdater marks open positions to market.
type MarketUpdater interface {
	UpdateFromMarket(market model.MarketEvent[model.DataKind]) (*model.PositionUpdate, error)
}

// OrderGenerator turns signals into orders, or declines to.
type OrderGenerator interface {
	GenerateOrder(signal model.Signal) (*model.OrderEvent, error)
	GenerateExitOrder(signal model.SignalForceExit) (*model.OrderEvent, error)
}

// FillUpdater applies fills, returning the side-effect events the Trader
// should publish (PositionNew or PositionExit, then Balance).
type FillUpdater interface {
	UpdateFromFill(fill model.FillEvent) ([]event.Event, error)
}

// MetaPortfolio is the one concrete Portfolio: shared by the Engine and all
// Traders under its mutex, with every public method a single short critical
// section.
type MetaPortfolio struct {
	mu         sync.Mutex
	engineID   uuid.UUID
	markets    []model.Market
	repository Repository
	allocator  oms.OrderAllocator
	risk       oms.OrderEvaluator
	logger     *slog.Logger
}

// Builder collects MetaPortfolio dependencies; Build fails with
// BuilderIncomplete naming the first missing field.
type Builder struct {
	engineID     uuid.UUID
	hasEngineID  bool
	markets      []model.Market
	startingCash float64
	repository   Repository
	allocator    oms.OrderAllocator
	risk         oms.OrderEvaluator
	statsStart   time.Time
	logger       *slog.Logger
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) EngineID(id uuid.UUID) *Builder {
	b.engineID = id
	b.hasEngineID = true
	return b
}

func (b *Builder) Markets(markets []model.Market) *Builder {
	b.markets = markets
	return b
}

func (b *Builder) StartingCash(cash float64) *Builder {
	b.startingCash = cash
	return b
}

func (b *Builder) Repository(repository Repository) *Builder {
	b.repository = repository
	return b
}

func (b *Builder) Allocator(allocator oms.OrderAllocator) *Builder {
	b.allocator = allocator
	return b
}

func (b *Builder) RiskEvaluator(risk oms.OrderEvaluator) *Builder {
	b.risk = risk
	return b
}

// StatisticsStart sets the session start time stamped into every per-market
// summary; defaults to Build time when unset.
func (b *Builder) StatisticsStart(start time.Time) *Builder {
	b.statsStart = start
	return b
}

func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the collected fields and bootstraps the Portfolio: the
// initial balance is written and every market's statistics initialized
// before the first Trader runs.
func (b *Builder) Build() (*MetaPortfolio, error) {
	switch {
	case !b.hasEngineID:
		return nil, model.NewBuilderIncompleteError("engine_id")
	case len(b.markets) == 0:
		return nil, model.NewBuilderIncompleteError("markets")
	case b.startingCash <= 0:
		return nil, model.NewBuilderIncompleteError("starting_cash")
	case b.repository == nil:
		return nil, model.NewBuilderIncompleteError("repository")
	case b.allocator == nil:
		return nil, model.NewBuilderIncompleteError("allocation_manager")
	case b.risk == nil:
		return nil, model.NewBuilderIncompleteError("risk_manager")
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}
	start := b.statsStart
	if start.IsZero() {
		start = time.Now()
	}

	p := &MetaPortfolio{
		engineID:   b.engineID,
		markets:    b.markets,
		repository: b.repository,
		allocator:  b.allocator,
		risk:       b.risk,
		logger:     b.logger.With("component", "portfolio"),
	}

	balance := model.NewBalance(start, b.startingCash, b.startingCash)
	if err := p.repository.SetBalance(p.engineID, balance); err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	for _, market := range p.markets {
		if err := p.repository.SetStatistics(model.NewMarketID(market), statistic.NewPnLReturnSummary(start)); err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}
	}

	return p, nil
}

// EngineID returns the engine id this Portfolio's positions are keyed by.
func (p *MetaPortfolio) EngineID() uuid.UUID { return p.engineID }

// UpdateFromMarket marks the open position (if any) for the event's market
// to the latest price. OrderBook payloads carry no scalar
// close, so they produce no update.
func (p *MetaPortfolio) UpdateFromMarket(market model.MarketEvent[model.DataKind]) (*model.PositionUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := model.DeterminePositionID(p.engineID, market.Exchange, market.Instrument)
	position, err := p.repository.GetOpenPosition(id)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	if position == nil {
		return nil, nil
	}

	update, ok := position.Update(market)
	if !ok {
		return nil, nil
	}

	if err := p.repository.SetOpenPosition(*position); err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	return &update, nil
}

// GenerateOrder arbitrates a Signal into at most one OrderEvent: resolve the open position, require a minimum balance for
// entries, pick the net decision, size through the allocator and vet
// through risk.
func (p *MetaPortfolio) GenerateOrder(signal model.Signal) (*model.OrderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := model.DeterminePositionID(p.engineID, signal.Exchange, signal.Instrument)
	position, err := p.repository.GetOpenPosition(id)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	balance, err := p.repository.GetBalance(p.engineID)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}

	if position == nil && balance.Available < minimumOrderBalance {
		return nil, nil
	}

	decision, ok := parseSignalDecisions(position, signal.Signals)
	if !ok {
		return nil, nil
	}

	order := model.OrderEvent{
		Timestamp:  signal.Timestamp,
		Exchange:   signal.Exchange,
		Instrument: signal.Instrument,
		MarketMeta: signal.MarketMeta,
		Decision:   decision,
		OrderType:  model.Limit,
	}

	p.allocator.AllocateOrder(&order, position, balance, signal.Signals[decision])
	if order.Quantity == 0 {
		return nil, nil
	}

	evaluated, ok := p.risk.EvaluateOrder(order)
	if !ok {
		return nil, nil
	}
	return &evaluated, nil
}

// GenerateExitOrder builds the Market order that flattens the open position
// for a forced exit, skipping the allocator and risk evaluator entirely.
// No open position, no order.
func (p *MetaPortfolio) GenerateExitOrder(signal model.SignalForceExit) (*model.OrderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := model.DeterminePositionID(p.engineID, signal.Exchange, signal.Instrument)
	position, err := p.repository.GetOpenPosition(id)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	if position == nil {
		p.logger.Info("cannot generate forced exit, no open position", "exchange", signal.Exchange, "instrument", signal.Instrument)
		return nil, nil
	}

	return &model.OrderEvent{
		Timestamp:  signal.Timestamp,
		Exchange:   signal.Exchange,
		Instrument: signal.Instrument,
		MarketMeta: model.MarketMeta{Close: position.CurrentSymbolPrice, Timestamp: signal.Timestamp},
		Decision:   position.DetermineExitDecision(),
		Quantity:   0 - position.Quantity,
		OrderType:  model.MarketOrderType,
	}, nil
}

// UpdateFromFill applies one FillEvent atomically: an open
// position is exited (balance credited with reserved capital plus realised
// P&L, statistics appended, position moved to the exited set), otherwise a
// fresh position is entered (available debited by value plus fees). Both
// paths persist and report the updated balance.
func (p *MetaPortfolio) UpdateFromFill(fill model.FillEvent) ([]event.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	balance, err := p.repository.GetBalance(p.engineID)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	balance.Timestamp = fill.Timestamp

	id := model.DeterminePositionID(p.engineID, fill.Exchange, fill.Instrument)
	position, err := p.repository.RemovePosition(id)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}

	var events []event.Event
	if position != nil {
		exit, err := position.Exit(balance, fill)
		if err != nil {
			// The fill cannot close this position; put it back untouched.
			if setErr := p.repository.SetOpenPosition(*position); setErr != nil {
				return nil, model.NewRepositoryInteractionError(setErr)
			}
			return nil, err
		}

		balance.Total += position.RealisedProfitLoss
		balance.Available += position.EnterValueGross + position.RealisedProfitLoss + position.EnterFeesTotal

		marketID := model.NewMarketID(model.NewMarket(fill.Exchange, fill.Instrument))
		stats, err := p.repository.GetStatistics(marketID)
		if err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}
		stats.Update(position)
		if err := p.repository.SetStatistics(marketID, stats); err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}

		if err := p.repository.SetExitedPosition(p.engineID, *position); err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}
		events = append(events, event.PositionExit{Exit: exit})
	} else {
		entered, err := model.Enter(p.engineID, fill)
		if err != nil {
			return nil, err
		}

		balance.Available += -entered.EnterValueGross - entered.EnterFeesTotal

		if err := p.repository.SetOpenPosition(entered); err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}
		events = append(events, event.PositionNew{Position: entered})
	}

	if err := p.repository.SetBalance(p.engineID, balance); err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	events = append(events, event.Balance{Balance: balance})

	return events, nil
}

// OpenPositions returns the open position for every market this Portfolio
// manages, used by the Engine's FetchOpenPositions command.
func (p *MetaPortfolio) OpenPositions() ([]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var positions []model.Position
	for _, market := range p.markets {
		id := model.DeterminePositionID(p.engineID, market.Exchange, market.Instrument)
		position, err := p.repository.GetOpenPosition(id)
		if err != nil {
			return nil, model.NewRepositoryInteractionError(err)
		}
		if position != nil {
			positions = append(positions, *position)
		}
	}
	return positions, nil
}

// ExitedPositions returns every position this Portfolio has closed.
func (p *MetaPortfolio) ExitedPositions() ([]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	positions, err := p.repository.GetExitedPositions(p.engineID)
	if err != nil {
		return nil, model.NewRepositoryInteractionError(err)
	}
	return positions, nil
}

// Statistics returns the running summary for one market.
func (p *MetaPortfolio) Statistics(id model.MarketID) (statistic.PnLReturnSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats, err := p.repository.GetStatistics(id)
	if err != nil {
		return statistic.PnLReturnSummary{}, model.NewRepositoryInteractionError(err)
	}
	return stats, nil
}

// Balance returns the current portfolio balance.
func (p *MetaPortfolio) Balance() (model.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	balance, err := p.repository.GetBalance(p.engineID)
	if err != nil {
		return model.Balance{}, model.NewRepositoryInteractionError(err)
	}
	return balance, nil
}

// parseSignalDecisions picks the net decision from a strategy's advisory
// signals given the current open position:
//
//	position Buy  -> CloseLong if advised, else nothing
//	position Sell -> CloseShort if advised, else nothing
//	no position   -> exactly one of {Long, Short} advised, else nothing
func parseSignalDecisions(position *model.Position, signals map[model.Decision]model.SignalStrength) (model.Decision, bool) {
	if position != nil {
		if position.Side == model.PositionBuy {
			if _, ok := signals[model.CloseLong]; ok {
				return model.CloseLong, true
			}
			return model.Hold, false
		}
		if _, ok := signals[model.CloseShort]; ok {
			return model.CloseShort, true
		}
		return model.Hold, false
	}

	_, hasLong := signals[model.Long]
	_, hasShort := signals[model.Short]
	switch {
	case hasLong && !hasShort:
		return model.Long, true
	case hasShort && !hasLong:
		return model.Short, true
	default:
		return model.Hold, false
	}
}
