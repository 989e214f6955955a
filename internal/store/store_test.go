package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"wednesday-engine/internal/model"
	"wednesday-engine/internal/statistic"
)

func testPosition(engineID uuid.UUID) model.Position {
	instrument := model.NewInstrument("btc", "usdt", model.Spot)
	return model.Position{
		PositionID:         model.DeterminePositionID(engineID, model.BinanceSpot, instrument),
		Exchange:           model.BinanceSpot,
		Instrument:         instrument,
		Side:               model.PositionBuy,
		Quantity:           1.5,
		EnterFeesTotal:     3,
		EnterValueGross:    150,
		CurrentSymbolPrice: 100,
	}
}

func TestOpenPositionRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	engineID := uuid.New()
	position := testPosition(engineID)

	if err := s.SetOpenPosition(position); err != nil {
		t.Fatalf("SetOpenPosition: %v", err)
	}

	loaded, err := s.GetOpenPosition(position.PositionID)
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetOpenPosition returned nil")
	}
	if loaded.Quantity != position.Quantity || loaded.EnterValueGross != position.EnterValueGross {
		t.Errorf("loaded = %+v, want %+v", loaded, position)
	}
}

func TestGetOpenPositionMissing(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	loaded, err := s.GetOpenPosition("nonexistent")
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing position, got %+v", loaded)
	}
}

func TestRemovePositionDeletesFile(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	engineID := uuid.New()
	position := testPosition(engineID)
	if err := s.SetOpenPosition(position); err != nil {
		t.Fatalf("SetOpenPosition: %v", err)
	}

	removed, err := s.RemovePosition(position.PositionID)
	if err != nil {
		t.Fatalf("RemovePosition: %v", err)
	}
	if removed == nil {
		t.Fatal("RemovePosition returned nil")
	}

	loaded, err := s.GetOpenPosition(position.PositionID)
	if err != nil {
		t.Fatalf("GetOpenPosition after remove: %v", err)
	}
	if loaded != nil {
		t.Errorf("position still present after remove: %+v", loaded)
	}
}

func TestExitedPositionsAppend(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	engineID := uuid.New()
	for i := 0; i < 3; i++ {
		if err := s.SetExitedPosition(engineID, testPosition(engineID)); err != nil {
			t.Fatalf("SetExitedPosition %d: %v", i, err)
		}
	}

	exited, err := s.GetExitedPositions(engineID)
	if err != nil {
		t.Fatalf("GetExitedPositions: %v", err)
	}
	if len(exited) != 3 {
		t.Errorf("exited positions = %d, want 3", len(exited))
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	engineID := uuid.New()
	balance := model.NewBalance(time.Now().UTC(), 1000, 850)
	if err := s.SetBalance(engineID, balance); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	loaded, err := s.GetBalance(engineID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if loaded.Total != 1000 || loaded.Available != 850 {
		t.Errorf("loaded balance = %+v, want total=1000 available=850", loaded)
	}
}

func TestStatisticsRoundTripKeepsDispersion(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	stats := statistic.NewPnLReturnSummary(time.Now().UTC())
	for _, ret := range []float64{0.1, -0.05, 0.02} {
		stats.Total.Update(ret)
	}

	id := model.NewMarketID(model.NewMarket(model.BinanceSpot, model.NewInstrument("btc", "usdt", model.Spot)))
	if err := s.SetStatistics(id, stats); err != nil {
		t.Fatalf("SetStatistics: %v", err)
	}

	loaded, err := s.GetStatistics(id)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if loaded.Total.Count != 3 {
		t.Errorf("count = %d, want 3", loaded.Total.Count)
	}
	if loaded.Total.StdDev() != stats.Total.StdDev() {
		t.Errorf("stddev = %v, want %v (Welford state must survive persistence)", loaded.Total.StdDev(), stats.Total.StdDev())
	}
}
