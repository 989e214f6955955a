package config

import (
	"os"
	"path/filepath"
	"testing"

	"wednesday-engine/internal/model"
)

const validYAML = `
engine:
  starting_cash: 10000
markets:
  - exchange: binance_spot
    base: btc
    quote: usdt
    kind: spot
    streams: [public_trades, order_books_l2]
  - exchange: bybit_spot
    base: eth
    quote: usdt
    kind: spot
    streams: [public_trades]
allocator:
  default_order_value: 100
execution:
  exchange_fee_pct: 0.001
  slippage_fee_pct: 0.0005
store:
  durable: false
logging:
  level: info
  format: text
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Engine.StartingCash != 10000 {
		t.Errorf("starting cash = %v, want 10000", cfg.Engine.StartingCash)
	}
	if len(cfg.Markets) != 2 {
		t.Fatalf("markets = %d, want 2", len(cfg.Markets))
	}

	market, err := cfg.Markets[0].Market()
	if err != nil {
		t.Fatalf("Market: %v", err)
	}
	if market.Exchange != model.BinanceSpot {
		t.Errorf("exchange = %v, want BinanceSpot", market.Exchange)
	}
	if market.Instrument.Base != "btc" || market.Instrument.Kind != model.Spot {
		t.Errorf("instrument = %+v", market.Instrument)
	}
}

func TestValidateRejectsUnsupportedKind(t *testing.T) {
	yaml := `
engine:
  starting_cash: 1000
markets:
  - exchange: binance_spot
    base: btc
    quote: usd
    kind: perpetual
    streams: [public_trades]
allocator:
  default_order_value: 100
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error: binance_spot does not support perpetual")
	}
}

func TestValidateRejectsMissingMarkets(t *testing.T) {
	yaml := `
engine:
  starting_cash: 1000
allocator:
  default_order_value: 100
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty markets")
	}
}

func TestParseHelpers(t *testing.T) {
	cases := []struct {
		in      string
		want    model.ExchangeID
		wantErr bool
	}{
		{"binance_spot", model.BinanceSpot, false},
		{"BYBIT_SPOT", model.BybitSpot, false},
		{"kraken", 0, true},
	}
	for i, tc := range cases {
		got, err := ParseExchangeID(tc.in)
		if (err != nil) != tc.wantErr || (!tc.wantErr && got != tc.want) {
			t.Errorf("TC%d failed: ParseExchangeID(%q) = (%v, %v)", i, tc.in, got, err)
		}
	}

	if _, err := ParseSubscriptionKind("order_books_l2"); err != nil {
		t.Errorf("ParseSubscriptionKind(order_books_l2): %v", err)
	}
	if _, err := ParseSubscriptionKind("candles"); err == nil {
		t.Error("expected error for unknown stream kind")
	}
}
