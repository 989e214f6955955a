package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"wednesday-engine/internal/event"
	"wednesday-engine/internal/model"
	"wednesday-engine/internal/oms"
)

func testMarket() model.Market {
	return model.NewMarket(model.BinanceSpot, model.NewInstrument("btc", "usdt", model.Spot))
}

func buildTestPortfolio(t *testing.T, startingCash float64) *MetaPortfolio {
	t.Helper()
	p, err := NewBuilder().
		EngineID(uuid.New()).
		Markets([]model.Market{testMarket()}).
		StartingCash(startingCash).
		Repository(NewInMemoryRepository()).
		Allocator(oms.DefaultAllocator{DefaultOrderValue: 100}).
		RiskEvaluator(oms.DefaultRisk{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestBuilderIncompleteFields(t *testing.T) {
	cases := []struct {
		name  string
		build func() (*MetaPortfolio, error)
		field string
	}{
		{"missing engine id", func() (*MetaPortfolio, error) {
			return NewBuilder().Markets([]model.Market{testMarket()}).StartingCash(100).
				Repository(NewInMemoryRepository()).Allocator(oms.DefaultAllocator{}).RiskEvaluator(oms.DefaultRisk{}).Build()
		}, "engine_id"},
		{"missing markets", func() (*MetaPortfolio, error) {
			return NewBuilder().EngineID(uuid.New()).StartingCash(100).
				Repository(NewInMemoryRepository()).Allocator(oms.DefaultAllocator{}).RiskEvaluator(oms.DefaultRisk{}).Build()
		}, "markets"},
		{"missing repository", func() (*MetaPortfolio, error) {
			return NewBuilder().EngineID(uuid.New()).Markets([]model.Market{testMarket()}).StartingCash(100).
				Allocator(oms.DefaultAllocator{}).RiskEvaluator(oms.DefaultRisk{}).Build()
		}, "repository"},
		{"missing risk manager", func() (*MetaPortfolio, error) {
			return NewBuilder().EngineID(uuid.New()).Markets([]model.Market{testMarket()}).StartingCash(100).
				Repository(NewInMemoryRepository()).Allocator(oms.DefaultAllocator{}).Build()
		}, "risk_manager"},
	}

	for i, tc := range cases {
		_, err := tc.build()
		pErr, ok := err.(*model.PortfolioError)
		if !ok || pErr.Kind != "BuilderIncomplete" || pErr.Field != tc.field {
			t.Errorf("TC%d (%s) failed: err = %v, want BuilderIncomplete(%s)", i, tc.name, err, tc.field)
		}
	}
}

func TestBootstrapWritesInitialBalanceAndStatistics(t *testing.T) {
	p := buildTestPortfolio(t, 200)

	balance, err := p.Balance()
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Total != 200 || balance.Available != 200 {
		t.Errorf("balance = %+v, want total=available=200", balance)
	}

	stats, err := p.Statistics(model.NewMarketID(testMarket()))
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Total.Count != 0 {
		t.Errorf("fresh statistics count = %d, want 0", stats.Total.Count)
	}
}

func TestEntryFillOpensPosition(t *testing.T) {
	// Entry: 1 btc at 100 with 3 total fees against 200 starting cash.
	p := buildTestPortfolio(t, 200)
	now := time.Now()

	fill := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     model.NewInstrument("btc", "usdt", model.Spot),
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.0,
		FillValueGross: 100,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}

	events, err := p.UpdateFromFill(fill)
	if err != nil {
		t.Fatalf("UpdateFromFill: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want [PositionNew, Balance]", len(events))
	}
	positionNew, ok := events[0].(event.PositionNew)
	if !ok {
		t.Fatalf("events[0] = %T, want PositionNew", events[0])
	}
	if _, ok := events[1].(event.Balance); !ok {
		t.Fatalf("events[1] = %T, want Balance", events[1])
	}

	position := positionNew.Position
	if position.Side != model.PositionBuy {
		t.Errorf("side = %v, want Buy", position.Side)
	}
	if position.EnterFeesTotal != 3 {
		t.Errorf("enter fees total = %v, want 3", position.EnterFeesTotal)
	}
	if position.UnrealisedProfitLoss != -6 {
		t.Errorf("unrealised = %v, want -6", position.UnrealisedProfitLoss)
	}

	balance, _ := p.Balance()
	if balance.Available != 97 || balance.Total != 200 {
		t.Errorf("balance = %+v, want available=97 total=200", balance)
	}
}

func TestExitFillInProfitLong(t *testing.T) {
	// Entry then profitable close: realised must land back in the balance.
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.0,
		FillValueGross: 100,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	exit := model.FillEvent{
		Timestamp:      now.Add(time.Minute),
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 200, Timestamp: now.Add(time.Minute)},
		Decision:       model.CloseLong,
		Quantity:       -1.0,
		FillValueGross: 200,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}
	events, err := p.UpdateFromFill(exit)
	if err != nil {
		t.Fatalf("exit fill: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want [PositionExit, Balance]", len(events))
	}
	positionExit, ok := events[0].(event.PositionExit)
	if !ok {
		t.Fatalf("events[0] = %T, want PositionExit", events[0])
	}

	// realised = 200 - 100 - (3 + 3) = 94
	if positionExit.Exit.RealisedProfitLoss != 94 {
		t.Errorf("realised = %v, want 94", positionExit.Exit.RealisedProfitLoss)
	}

	balance, _ := p.Balance()
	if balance.Total != 294 {
		t.Errorf("balance total = %v, want 294", balance.Total)
	}
	if math.Abs(balance.Available-294) > 1e-9 {
		t.Errorf("balance available = %v, want 294", balance.Available)
	}

	exited, err := p.ExitedPositions()
	if err != nil {
		t.Fatalf("ExitedPositions: %v", err)
	}
	if len(exited) != 1 {
		t.Fatalf("exited positions = %d, want 1", len(exited))
	}

	stats, _ := p.Statistics(model.NewMarketID(testMarket()))
	if stats.Total.Count != 1 {
		t.Errorf("statistics count = %d, want 1", stats.Total.Count)
	}

	open, _ := p.OpenPositions()
	if len(open) != 0 {
		t.Errorf("open positions = %d, want 0", len(open))
	}
}

func TestEntryFillWhileOpenFails(t *testing.T) {
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.0,
		FillValueGross: 100,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	if _, err := p.UpdateFromFill(entry); err != model.ErrCannotExitPositionWithEntryFill {
		t.Errorf("second entry fill err = %v, want CannotExitPositionWithEntryFill", err)
	}

	// The open position must survive the rejected fill.
	open, _ := p.OpenPositions()
	if len(open) != 1 {
		t.Errorf("open positions = %d, want 1 after rejected fill", len(open))
	}
}

func TestGenerateOrderSignalArbitration(t *testing.T) {
	// Buy position with {CloseLong, Short} advised: the close must win.
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.0,
		FillValueGross: 100,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	signal := model.Signal{
		Timestamp:  now,
		Exchange:   model.BinanceSpot,
		Instrument: instrument,
		Signals: map[model.Decision]model.SignalStrength{
			model.CloseLong: 1.0,
			model.Short:     1.0,
		},
		MarketMeta: model.MarketMeta{Close: 110, Timestamp: now},
	}

	order, err := p.GenerateOrder(signal)
	if err != nil {
		t.Fatalf("GenerateOrder: %v", err)
	}
	if order == nil {
		t.Fatal("expected an order")
	}
	if order.Decision != model.CloseLong {
		t.Errorf("decision = %v, want CloseLong", order.Decision)
	}
	if order.Quantity != -1.0 {
		t.Errorf("quantity = %v, want -1.0 (flatten)", order.Quantity)
	}
}

func TestGenerateOrderRequiresMinimumBalance(t *testing.T) {
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	// Consume nearly all available cash.
	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.995,
		FillValueGross: 199.5,
		Fees:           model.Fees{},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	// A different market with no position: available 0.5 < 1.0 floor.
	signal := model.Signal{
		Timestamp:  now,
		Exchange:   model.BinanceSpot,
		Instrument: model.NewInstrument("eth", "usdt", model.Spot),
		Signals:    map[model.Decision]model.SignalStrength{model.Long: 1.0},
		MarketMeta: model.MarketMeta{Close: 10, Timestamp: now},
	}

	order, err := p.GenerateOrder(signal)
	if err != nil {
		t.Fatalf("GenerateOrder: %v", err)
	}
	if order != nil {
		t.Errorf("expected no order below minimum balance, got %+v", order)
	}
}

func TestGenerateExitOrder(t *testing.T) {
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       2.0,
		FillValueGross: 200,
		Fees:           model.Fees{},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	order, err := p.GenerateExitOrder(model.NewSignalForceExit(testMarket()))
	if err != nil {
		t.Fatalf("GenerateExitOrder: %v", err)
	}
	if order == nil {
		t.Fatal("expected an exit order")
	}
	if order.Decision != model.CloseLong {
		t.Errorf("decision = %v, want CloseLong", order.Decision)
	}
	if order.Quantity != -2.0 {
		t.Errorf("quantity = %v, want -2.0", order.Quantity)
	}
	if order.OrderType != model.MarketOrderType {
		t.Errorf("order type = %v, want Market", order.OrderType)
	}
}

func TestGenerateExitOrderNoPosition(t *testing.T) {
	p := buildTestPortfolio(t, 200)
	order, err := p.GenerateExitOrder(model.NewSignalForceExit(testMarket()))
	if err != nil {
		t.Fatalf("GenerateExitOrder: %v", err)
	}
	if order != nil {
		t.Errorf("expected no order without a position, got %+v", order)
	}
}

func TestUpdateFromMarketMarksOpenPosition(t *testing.T) {
	p := buildTestPortfolio(t, 200)
	now := time.Now()
	instrument := model.NewInstrument("btc", "usdt", model.Spot)

	entry := model.FillEvent{
		Timestamp:      now,
		Exchange:       model.BinanceSpot,
		Instrument:     instrument,
		MarketMeta:     model.MarketMeta{Close: 100, Timestamp: now},
		Decision:       model.Long,
		Quantity:       1.0,
		FillValueGross: 100,
		Fees:           model.Fees{Exchange: 1, Slippage: 2},
	}
	if _, err := p.UpdateFromFill(entry); err != nil {
		t.Fatalf("entry fill: %v", err)
	}

	market := model.MarketEvent[model.DataKind]{
		ExchangeTimestamp: now.Add(time.Second),
		LocalTimestamp:    now.Add(time.Second),
		Exchange:          model.BinanceSpot,
		Instrument:        instrument,
		Payload:           model.PublicTrade{ID: "1", Price: 150, Quantity: 0.5, Aggressor: model.Buy},
	}

	update, err := p.UpdateFromMarket(market)
	if err != nil {
		t.Fatalf("UpdateFromMarket: %v", err)
	}
	if update == nil {
		t.Fatal("expected a position update")
	}
	if update.CurrentSymbolPrice != 150 {
		t.Errorf("current price = %v, want 150", update.CurrentSymbolPrice)
	}
	// Buy: 150 - 100 - 2*3 = 44
	if update.UnrealisedProfitLoss != 44 {
		t.Errorf("unrealised = %v, want 44", update.UnrealisedProfitLoss)
	}
}

func TestUpdateFromMarketNoPositionNoUpdate(t *testing.T) {
	p := buildTestPortfolio(t, 200)

	market := model.MarketEvent[model.DataKind]{
		Exchange:   model.BinanceSpot,
		Instrument: model.NewInstrument("btc", "usdt", model.Spot),
		Payload:    model.PublicTrade{Price: 150},
	}

	update, err := p.UpdateFromMarket(market)
	if err != nil {
		t.Fatalf("UpdateFromMarket: %v", err)
	}
	if update != nil {
		t.Errorf("expected nil update without a position, got %+v", update)
	}
}

func TestParseSignalDecisions(t *testing.T) {
	buyPos := &model.Position{Side: model.PositionBuy}
	sellPos := &model.Position{Side: model.PositionSell}

	cases := []struct {
		position *model.Position
		signals  map[model.Decision]model.SignalStrength
		want     model.Decision
		wantOK   bool
	}{
		{nil, map[model.Decision]model.SignalStrength{model.Long: 1, model.Short: 1}, model.Hold, false},
		{nil, map[model.Decision]model.SignalStrength{model.Long: 1}, model.Long, true},
		{nil, map[model.Decision]model.SignalStrength{model.Short: 1}, model.Short, true},
		{nil, map[model.Decision]model.SignalStrength{}, model.Hold, false},
		{buyPos, map[model.Decision]model.SignalStrength{model.Long: 1, model.CloseShort: 1}, model.Hold, false},
		{buyPos, map[model.Decision]model.SignalStrength{model.CloseLong: 1, model.Short: 1}, model.CloseLong, true},
		{sellPos, map[model.Decision]model.SignalStrength{model.CloseShort: 1, model.Long: 1}, model.CloseShort, true},
		{sellPos, map[model.Decision]model.SignalStrength{model.CloseLong: 1}, model.Hold, false},
	}

	for i, tc := range cases {
		got, ok := parseSignalDecisions(tc.position, tc.signals)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("TC%d failed: got (%v, %v), want (%v, %v)", i, got, ok, tc.want, tc.wantOK)
		}
	}
}
