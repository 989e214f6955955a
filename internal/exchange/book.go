package exchange

import (
	"context"
	"sort"

	"wednesday-engine/internal/model"
)

// UpsertLevels applies a batch of incremental levels onto an existing side,
// removing any level whose amount is 0, and returns the side in canonical
// order (descending for bids, ascending for asks). No two returned levels
// share a price.
func UpsertLevels(existing []model.Level, updates []model.Level, descending bool) []model.Level {
	byPrice := make(map[float64]float64, len(existing)+len(updates))
	for _, lvl := range existing {
		byPrice[lvl.Price] = lvl.Amount
	}
	for _, lvl := range updates {
		if lvl.Amount == 0 {
			delete(byPrice, lvl.Price)
			continue
		}
		byPrice[lvl.Price] = lvl.Amount
	}

	out := make([]model.Level, 0, len(byPrice))
	for price, amount := range byPrice {
		out = append(out, model.Level{Price: price, Amount: amount})
	}

	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// OrderBookUpdater maintains one local L2 book synchronized with an
// exchange's delta stream. Init prepares any state the
// exchange needs before the first delta can be applied (e.g. Binance spot's
// REST snapshot fetch); Apply folds one delta in and returns the canonical
// snapshot to emit, or ok=false if the delta was dropped (stale, or
// pre-snapshot buffering).
type OrderBookUpdater interface {
	Init(ctx context.Context) (model.OrderBook, error)
	// Apply folds delta onto book (the updater's own most recent snapshot)
	// and returns the new canonical snapshot, or ok=false if the delta was
	// dropped (stale, or pre-snapshot buffering) with book left unchanged.
	Apply(book model.OrderBook, delta any) (updated model.OrderBook, ok bool, err *model.DataError)
}

// InstrumentOrderBook pairs an instrument with the updater maintaining its
// book — owned exclusively by the exchange stream task that produced it.
type InstrumentOrderBook struct {
	Instrument model.Instrument
	Updater    OrderBookUpdater
	Book       model.OrderBook
}
