package execution

import (
	"math"
	"testing"
	"time"

	"wednesday-engine/internal/model"
)

func TestGenerateFillBuyOrder(t *testing.T) {
	exec := NewSimulatedExecution(FeesPct{ExchangePct: 0.001, SlippagePct: 0.0005})

	order := model.OrderEvent{
		Timestamp:  time.Now(),
		Exchange:   model.BinanceSpot,
		Instrument: model.NewInstrument("btc", "usdt", model.Spot),
		MarketMeta: model.MarketMeta{Close: 100},
		Decision:   model.Long,
		Quantity:   2.0,
		OrderType:  model.Limit,
	}

	fill, err := exec.GenerateFill(order)
	if err != nil {
		t.Fatalf("GenerateFill: %v", err)
	}

	if fill.FillValueGross != 200 {
		t.Errorf("fill value gross = %v, want 200", fill.FillValueGross)
	}
	if fill.Quantity != 2.0 {
		t.Errorf("quantity = %v, want 2.0", fill.Quantity)
	}
	if math.Abs(fill.Fees.Exchange-0.2) > 1e-9 {
		t.Errorf("exchange fee = %v, want 0.2", fill.Fees.Exchange)
	}
	if math.Abs(fill.Fees.Slippage-0.1) > 1e-9 {
		t.Errorf("slippage fee = %v, want 0.1", fill.Fees.Slippage)
	}
	if fill.Decision != model.Long {
		t.Errorf("decision = %v, want Long", fill.Decision)
	}
}

func TestGenerateFillSellOrderGrossValuePositive(t *testing.T) {
	exec := NewSimulatedExecution(FeesPct{})

	order := model.OrderEvent{
		MarketMeta: model.MarketMeta{Close: 50},
		Decision:   model.CloseLong,
		Quantity:   -1.5,
	}

	fill, err := exec.GenerateFill(order)
	if err != nil {
		t.Fatalf("GenerateFill: %v", err)
	}

	if fill.FillValueGross != 75 {
		t.Errorf("fill value gross = %v, want 75 (always positive)", fill.FillValueGross)
	}
	if fill.Quantity != -1.5 {
		t.Errorf("quantity = %v, want -1.5 (sign preserved)", fill.Quantity)
	}
}
