package bybit

import (
	"context"
	"fmt"
	"time"

	"wednesday-engine/internal/exchange"
	"wednesday-engine/internal/model"
)

// BookUpdater implements exchange.OrderBookUpdater for Bybit. Grounded on
// Bybit publishes no REST snapshot, so Init
// starts from an empty book and the first delta received becomes the
// baseline. Sequencing is a simple monotonic last_update_id gate with no
// terminal fault — a dropped or out-of-order delta is silently skipped
// rather than tearing down the stream, unlike Binance spot.
type BookUpdater struct {
	updatesProcessed uint64
	lastUpdateID     uint64
}

func NewBookUpdater(_ model.Instrument) *BookUpdater {
	return &BookUpdater{}
}

func (u *BookUpdater) Init(_ context.Context) (model.OrderBook, error) {
	return model.OrderBook{Timestamp: time.Now().UTC()}, nil
}

func (u *BookUpdater) Apply(book model.OrderBook, delta any) (model.OrderBook, bool, *model.DataError) {
	p, ok := delta.(depthPayload)
	if !ok {
		return model.OrderBook{}, false, model.NewSocketDataError(model.NewSubscribeError(fmt.Sprintf("unexpected delta type %T", delta)))
	}

	if p.delta.LastUpdateID <= u.lastUpdateID {
		return model.OrderBook{}, false, nil
	}

	u.updatesProcessed++
	u.lastUpdateID = p.delta.LastUpdateID

	book.Timestamp = time.Now().UTC()
	book.Bids = exchange.UpsertLevels(book.Bids, toModelLevels(p.delta.Bids), true)
	book.Asks = exchange.UpsertLevels(book.Asks, toModelLevels(p.delta.Asks), false)

	return book, true, nil
}
