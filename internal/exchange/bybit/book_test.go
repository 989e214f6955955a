package bybit

import (
	"context"
	"testing"

	"wednesday-engine/internal/model"
)

func TestBookUpdaterInitStartsEmpty(t *testing.T) {
	u := NewBookUpdater(model.NewInstrument("btc", "usdt", model.Spot))
	book, err := u.Init(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(book.Bids) != 0 || len(book.Asks) != 0 {
		t.Fatalf("expected empty book, got %+v", book)
	}
}

func TestBookUpdaterAppliesFirstDelta(t *testing.T) {
	u := NewBookUpdater(model.NewInstrument("btc", "usdt", model.Spot))
	book, _ := u.Init(context.Background())

	delta := depthPayload{delta: depthDelta{
		LastUpdateID: 100,
		Bids:         []level{{Price: 16493.50, Amount: 0.006}},
		Asks:         []level{{Price: 16611.00, Amount: 0.029}},
	}}

	updated, ok, dataErr := u.Apply(book, delta)
	if dataErr != nil {
		t.Fatalf("unexpected error: %v", dataErr)
	}
	if !ok {
		t.Fatal("expected first delta to apply")
	}
	if len(updated.Bids) != 1 || updated.Bids[0].Price != 16493.50 {
		t.Fatalf("unexpected bids: %+v", updated.Bids)
	}
	if len(updated.Asks) != 1 || updated.Asks[0].Price != 16611.00 {
		t.Fatalf("unexpected asks: %+v", updated.Asks)
	}
}

func TestBookUpdaterDropsStaleDeltaSilently(t *testing.T) {
	u := NewBookUpdater(model.NewInstrument("btc", "usdt", model.Spot))
	book, _ := u.Init(context.Background())

	first := depthPayload{delta: depthDelta{LastUpdateID: 100, Bids: []level{{Price: 16493.50, Amount: 0.006}}}}
	book, ok, err := u.Apply(book, first)
	if err != nil || !ok {
		t.Fatalf("expected first delta to apply, ok=%v err=%v", ok, err)
	}

	stale := depthPayload{delta: depthDelta{LastUpdateID: 100, Bids: []level{{Price: 16400.00, Amount: 1}}}}
	_, ok, err = u.Apply(book, stale)
	if err != nil {
		t.Fatalf("stale delta should never be a terminal error, got %v", err)
	}
	if ok {
		t.Fatal("expected stale delta to be dropped")
	}
}

func TestBookUpdaterUpsertsAndRemovesZeroAmountLevels(t *testing.T) {
	u := NewBookUpdater(model.NewInstrument("btc", "usdt", model.Spot))
	book, _ := u.Init(context.Background())

	first := depthPayload{delta: depthDelta{
		LastUpdateID: 100,
		Bids:         []level{{Price: 16493.50, Amount: 0.006}, {Price: 16400.00, Amount: 1}},
	}}
	book, ok, err := u.Apply(book, first)
	if err != nil || !ok {
		t.Fatalf("expected first delta to apply, ok=%v err=%v", ok, err)
	}

	second := depthPayload{delta: depthDelta{
		LastUpdateID: 101,
		Bids:         []level{{Price: 16400.00, Amount: 0}},
	}}
	book, ok, err = u.Apply(book, second)
	if err != nil || !ok {
		t.Fatalf("expected second delta to apply, ok=%v err=%v", ok, err)
	}

	if len(book.Bids) != 1 || book.Bids[0].Price != 16493.50 {
		t.Fatalf("expected zero-amount level removed, got %+v", book.Bids)
	}
}

func TestBookUpdaterRejectsUnexpectedDeltaType(t *testing.T) {
	u := NewBookUpdater(model.NewInstrument("btc", "usdt", model.Spot))
	book, _ := u.Init(context.Background())

	_, ok, err := u.Apply(book, "not a depth payload")
	if err == nil {
		t.Fatal("expected an error for unexpected delta type")
	}
	if ok {
		t.Fatal("expected ok to be false")
	}
}
