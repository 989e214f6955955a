package binance

import (
	"context"
	"fmt"
	"time"

	"wednesday-engine/internal/exchange"
	"wednesday-engine/internal/model"
	"wednesday-engine/pkg/ratelimit"

	"github.com/go-resty/resty/v2"
)

const spotDepthSnapshotURL = "https://api.binance.com/api/v3/depth"

// snapshotLimiter throttles REST depth-snapshot fetches across every
// SpotBookUpdater sharing this process; Binance's public weight limit for
// /api/v3/depth?limit=100 is light enough that 10 req/s of headroom is
// generous.
var snapshotLimiter = ratelimit.NewTokenBucket(20, 10)

var httpClient = resty.New().SetTimeout(10 * time.Second)

// SpotBookUpdater implements exchange.OrderBookUpdater for Binance Spot,
// following Binance's documented recipe: fetch a REST snapshot, then
// buffer/validate the first delta against it, then require every subsequent
// delta's first_update_id to equal the previous delta's last_update_id + 1.
type SpotBookUpdater struct {
	instrument       model.Instrument
	updatesProcessed uint64
	lastUpdateID     uint64
}

func NewSpotBookUpdater(instrument model.Instrument) *SpotBookUpdater {
	return &SpotBookUpdater{instrument: instrument}
}

// Init fetches the REST depth snapshot and seeds
// lastUpdateID from it.
func (u *SpotBookUpdater) Init(ctx context.Context) (model.OrderBook, error) {
	if err := snapshotLimiter.Wait(ctx); err != nil {
		return model.OrderBook{}, err
	}

	symbol := fmt.Sprintf("%s%s", toUpper(u.instrument.Base), toUpper(u.instrument.Quote))

	var snapshot depthSnapshot
	resp, err := httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "limit": "100"}).
		SetResult(&snapshot).
		Get(spotDepthSnapshotURL)
	if err != nil {
		return model.OrderBook{}, model.NewHttpError(err)
	}
	if resp.IsError() {
		return model.OrderBook{}, model.NewHttpError(fmt.Errorf("depth snapshot: status %d: %s", resp.StatusCode(), resp.String()))
	}

	u.lastUpdateID = snapshot.LastUpdateID

	return model.OrderBook{
		Timestamp: time.Now().UTC(),
		Bids:      exchange.UpsertLevels(nil, toModelLevels(snapshot.Bids), true),
		Asks:      exchange.UpsertLevels(nil, toModelLevels(snapshot.Asks), false),
	}, nil
}

func (u *SpotBookUpdater) isFirstUpdate() bool { return u.updatesProcessed == 0 }

// Apply implements the remaining steps of Binance's "How To Manage A Local
// Order Book Correctly" recipe: drop stale deltas, validate sequencing, fold
// the delta's absolute-quantity levels into book, and emit the new
// canonical snapshot.
func (u *SpotBookUpdater) Apply(book model.OrderBook, delta any) (model.OrderBook, bool, *model.DataError) {
	d, ok := delta.(depthDelta)
	if !ok {
		return model.OrderBook{}, false, model.NewSocketDataError(model.NewSubscribeError(fmt.Sprintf("unexpected delta type %T", delta)))
	}

	// Step 4: drop any event whose last_update_id is <= the snapshot's.
	if d.LastUpdateID <= u.lastUpdateID {
		return model.OrderBook{}, false, nil
	}

	expectedNext := u.lastUpdateID + 1
	if u.isFirstUpdate() {
		// Step 5: first processed event must straddle the snapshot boundary.
		if d.FirstUpdateID > expectedNext || d.LastUpdateID < expectedNext {
			return model.OrderBook{}, false, model.NewInvalidSequenceDataError(u.lastUpdateID, d.FirstUpdateID)
		}
	} else if d.FirstUpdateID != expectedNext {
		// Step 6: every later event's U must equal the previous u+1.
		return model.OrderBook{}, false, model.NewInvalidSequenceDataError(u.lastUpdateID, d.FirstUpdateID)
	}

	u.updatesProcessed++
	u.lastUpdateID = d.LastUpdateID

	book.Timestamp = time.Now().UTC()
	book.Bids = exchange.UpsertLevels(book.Bids, toModelLevels(d.Bids), true)
	book.Asks = exchange.UpsertLevels(book.Asks, toModelLevels(d.Asks), false)

	return book, true, nil
}

func toUpper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
