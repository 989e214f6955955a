// Wednesday Engine — an event-driven algorithmic trading engine for
// cryptocurrency markets.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires streams → traders → portfolio, waits for SIGINT/SIGTERM
//	exchange/...               — generic connectivity: subscribe, validate, order-book sync, reconnect supervision
//	exchange/{binance,bybit}   — per-venue wire protocol: subscribe frames, message parsing, book updaters
//	data/feed.go               — live (channel) and historical (slice) market-event feeds
//	strategy/...               — pluggable SignalGenerator plus two sample strategies
//	oms/...                    — order sizing (Allocator) and final veto (RiskEvaluator)
//	execution/...              — simulated fills at market with percentage fees
//	portfolio/...              — shared balances, positions, statistics; signal → order arbitration
//	engine/...                 — per-market Trader event loops and the command-dispatching Engine
//	store/store.go             — optional JSON file persistence behind the Repository contract
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"wednesday-engine/internal/config"
	"wednesday-engine/internal/data"
	"wednesday-engine/internal/engine"
	"wednesday-engine/internal/event"
	"wednesday-engine/internal/exchange"
	"wednesday-engine/internal/exchange/binance"
	"wednesday-engine/internal/exchange/bybit"
	"wednesday-engine/internal/execution"
	"wednesday-engine/internal/model"
	"wednesday-engine/internal/oms"
	"wednesday-engine/internal/portfolio"
	"wednesday-engine/internal/store"
	"wednesday-engine/internal/strategy"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ENGINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	if err := run(cfg, logger); err != nil {
		logger.Error("engine session failed", "error", err)
		os.Exit(1)
	}
}

// parseLogLevel maps the configured level name onto a slog.Level,
// defaulting to info for anything unrecognised.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repository: in-memory by default, JSON files when configured durable.
	var repository portfolio.Repository = portfolio.NewInMemoryRepository()
	if cfg.Store.Durable {
		durable, err := store.Open(cfg.Store.DataDir)
		if err != nil {
			return err
		}
		repository = durable
	}

	markets := make([]model.Market, 0, len(cfg.Markets))
	subscriptions := make([]model.Subscription, 0, len(cfg.Markets))
	for _, mc := range cfg.Markets {
		market, err := mc.Market()
		if err != nil {
			return err
		}
		markets = append(markets, market)
		for _, s := range mc.Streams {
			kind, err := config.ParseSubscriptionKind(s)
			if err != nil {
				return err
			}
			subscriptions = append(subscriptions, model.NewSubscription(market.Exchange, market.Instrument, kind))
		}
	}

	engineID := uuid.New()
	meta, err := portfolio.NewBuilder().
		EngineID(engineID).
		Markets(markets).
		StartingCash(cfg.Engine.StartingCash).
		Repository(repository).
		Allocator(oms.DefaultAllocator{DefaultOrderValue: cfg.Allocator.DefaultOrderValue}).
		RiskEvaluator(oms.DefaultRisk{}).
		Logger(logger).
		Build()
	if err != nil {
		return err
	}

	streams, err := exchange.NewStreamBuilder(connectorFactories(), logger).
		Subscribe(subscriptions...).
		Init(ctx)
	if err != nil {
		return err
	}
	defer streams.Shutdown()

	// Fan each exchange's stream out into one feed channel per market.
	feeds := routeMarketEvents(ctx, streams, markets, logger)

	events := make(chan event.Event, 4096)
	go logEvents(ctx, events, logger)

	traders := make([]*engine.Trader, 0, len(markets))
	for _, market := range markets {
		trader, err := engine.NewTrader(engine.TraderConfig{
			Market:    market,
			Feed:      data.NewLiveMarketFeed(feeds[market]),
			Strategy:  strategy.NewMomentum(0.001),
			Execution: execution.NewSimulatedExecution(execution.FeesPct{
				ExchangePct: cfg.Execution.ExchangeFeePct,
				SlippagePct: cfg.Execution.SlippageFeePct,
			}),
			Portfolio: meta,
			EventTx:   event.NewChannelTx(events, logger),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		traders = append(traders, trader)
	}

	eng, err := engine.New(engine.Config{
		EngineID:  engineID,
		Portfolio: meta,
		Traders:   traders,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	// SIGINT/SIGTERM turns into a graceful Terminate: flatten every market,
	// then stop each trader.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		eng.CommandTx() <- engine.Terminate{Message: sig.String()}
	}()

	logger.Info("engine session starting",
		"engine_id", engineID,
		"markets", len(markets),
		"starting_cash", cfg.Engine.StartingCash,
	)

	summary := eng.Run(ctx)
	logSummary(summary, logger)
	return nil
}

func connectorFactories() map[exchange.ConnectorKey]exchange.ConnectorFactory {
	return map[exchange.ConnectorKey]exchange.ConnectorFactory{
		{Exchange: model.BinanceSpot, Kind: model.PublicTrades}:  func() exchange.Connector { return binance.NewSpotConnector() },
		{Exchange: model.BinanceSpot, Kind: model.OrderBooksL2}:  func() exchange.Connector { return binance.NewSpotConnector() },
		{Exchange: model.BybitSpot, Kind: model.PublicTrades}:    func() exchange.Connector { return bybit.NewSpotConnector() },
		{Exchange: model.BybitSpot, Kind: model.OrderBooksL2}:    func() exchange.Connector { return bybit.NewSpotConnector() },
	}
}

// routeMarketEvents splits each per-exchange stream into per-market feed
// channels, keyed the same way Traders are.
func routeMarketEvents(ctx context.Context, streams *exchange.Streams, markets []model.Market, logger *slog.Logger) map[model.Market]chan model.MarketEvent[model.DataKind] {
	feeds := make(map[model.Market]chan model.MarketEvent[model.DataKind], len(markets))
	byExchange := make(map[model.ExchangeID]bool)
	for _, market := range markets {
		feeds[market] = make(chan model.MarketEvent[model.DataKind], 1024)
		byExchange[market.Exchange] = true
	}

	for exchangeID := range byExchange {
		receiver, ok := streams.Select(exchangeID)
		if !ok {
			continue
		}
		exchangeID := exchangeID
		go func() {
			defer func() {
				for market, feed := range feeds {
					if market.Exchange == exchangeID {
						close(feed)
					}
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, open := <-receiver:
					if !open {
						return
					}
					market := model.NewMarket(ev.Exchange, ev.Instrument)
					feed, known := feeds[market]
					if !known {
						logger.Debug("event for untraded market dropped", "market", market)
						continue
					}
					select {
					case feed <- ev:
					default:
						logger.Warn("market feed full, dropping event", "market", market)
					}
				}
			}
		}()
	}
	return feeds
}

// logEvents drains the trader event bus so the session is observable
// without a dashboard.
func logEvents(ctx context.Context, events <-chan event.Event, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch e := ev.(type) {
			case event.PositionNew:
				logger.Info("position opened",
					"position", e.Position.PositionID,
					"side", e.Position.Side,
					"quantity", e.Position.Quantity,
					"value", e.Position.EnterValueGross,
				)
			case event.PositionExit:
				logger.Info("position closed",
					"position", e.Exit.PositionID,
					"realised_pnl", e.Exit.RealisedProfitLoss,
				)
			case event.Balance:
				logger.Debug("balance updated", "total", e.Balance.Total, "available", e.Balance.Available)
			case event.TraderError:
				logger.Error("trader failed", "market", e.Market, "error", e.Err)
			default:
				logger.Debug("event", "type", typeName(ev))
			}
		}
	}
}

func typeName(ev event.Event) string {
	switch ev.(type) {
	case event.Market:
		return "market"
	case event.Signal:
		return "signal"
	case event.SignalForceExit:
		return "signal_force_exit"
	case event.OrderNew:
		return "order_new"
	case event.Fill:
		return "fill"
	case event.PositionUpdate:
		return "position_update"
	default:
		return "unknown"
	}
}

func logSummary(summary engine.SessionSummary, logger *slog.Logger) {
	for id, stats := range summary.PerMarket {
		logger.Info("market summary",
			"market", id,
			"trades", stats.Total.Count,
			"pnl_return_sum", stats.Total.Sum,
			"win_rate", stats.WinRate(),
			"trades_per_day", stats.TradesPerDay,
		)
	}
	logger.Info("session total",
		"trades", summary.Total.Total.Count,
		"pnl_return_sum", summary.Total.Total.Sum,
		"win_rate", summary.Total.WinRate(),
		"sharpe", summary.Total.SharpeRatio(),
		"duration", summary.Total.Duration.Round(time.Second),
	)
}
