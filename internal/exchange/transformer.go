package exchange

import (
	"context"
	"fmt"
	"time"

	"wednesday-engine/internal/model"
)

// IdentifiablePayload is implemented by an exchange's already-decoded trade
// or bar message: it knows which subscription produced it, when the
// exchange generated it, and how to turn itself into a normalized
// model.DataKind.
type IdentifiablePayload interface {
	SubscriptionID() model.SubscriptionID
	ExchangeTime() time.Time
	ToDataKind() model.DataKind
}

// IdentifiableDelta is implemented by an exchange's already-decoded
// order-book delta message: it knows which subscription produced it. The
// concrete delta value itself is handed to the matching OrderBookUpdater.
type IdentifiableDelta interface {
	SubscriptionID() model.SubscriptionID
}

// Transformer turns one already-JSON-parsed exchange message into zero or
// more normalized MarketEvents.
type Transformer interface {
	Transform(exchange model.ExchangeID, localTs time.Time, msg any) ([]model.MarketEvent[model.DataKind], error)
}

// StatelessTransformer handles trade/bar subscriptions: it holds only the
// instrument map, no per-instrument state.
type StatelessTransformer struct {
	InstrumentMap map[model.SubscriptionID]model.Instrument
}

func NewStatelessTransformer(instrumentMap map[model.SubscriptionID]model.Instrument) *StatelessTransformer {
	return &StatelessTransformer{InstrumentMap: instrumentMap}
}

func (t *StatelessTransformer) Transform(exchange model.ExchangeID, localTs time.Time, msg any) ([]model.MarketEvent[model.DataKind], error) {
	payload, ok := msg.(IdentifiablePayload)
	if !ok {
		return nil, fmt.Errorf("stateless transformer: message does not implement IdentifiablePayload: %T", msg)
	}

	subID := payload.SubscriptionID()
	instrument, known := t.InstrumentMap[subID]
	if !known {
		return nil, model.NewUnidentifiableError(subID)
	}

	return []model.MarketEvent[model.DataKind]{{
		ExchangeTimestamp: payload.ExchangeTime(),
		LocalTimestamp:    localTs,
		Exchange:          exchange,
		Instrument:        instrument,
		Payload:           payload.ToDataKind(),
	}}, nil
}

// StatefulTransformer handles order-book subscriptions: one
// InstrumentOrderBook per instrument, each owned exclusively by this
// transformer.
type StatefulTransformer struct {
	InstrumentMap map[model.SubscriptionID]model.Instrument
	books         map[model.SubscriptionID]*InstrumentOrderBook
}

// NewOrderBookUpdaterFunc is supplied by the connector so the transformer can build
// one updater (and run its Init, e.g. a REST snapshot fetch) per instrument
// without depending on any one exchange package.
type NewOrderBookUpdaterFunc func(instrument model.Instrument) OrderBookUpdater

// NewStatefulTransformer runs Updater.Init for every instrument concurrently
// before returning.
func NewStatefulTransformer(ctx context.Context, instrumentMap map[model.SubscriptionID]model.Instrument, newUpdater NewOrderBookUpdaterFunc) (*StatefulTransformer, error) {
	type result struct {
		subID  model.SubscriptionID
		book   *InstrumentOrderBook
		err    error
	}

	results := make(chan result, len(instrumentMap))
	for subID, instrument := range instrumentMap {
		subID, instrument := subID, instrument
		go func() {
			updater := newUpdater(instrument)
			book, err := updater.Init(ctx)
			results <- result{subID: subID, book: &InstrumentOrderBook{Instrument: instrument, Updater: updater, Book: book}, err: err}
		}()
	}

	books := make(map[model.SubscriptionID]*InstrumentOrderBook, len(instrumentMap))
	var firstErr error
	for range instrumentMap {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-results:
			if r.err != nil && firstErr == nil {
				firstErr = r.err
			}
			books[r.subID] = r.book
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return &StatefulTransformer{InstrumentMap: instrumentMap, books: books}, nil
}

func (t *StatefulTransformer) Transform(exchange model.ExchangeID, localTs time.Time, msg any) ([]model.MarketEvent[model.DataKind], error) {
	delta, ok := msg.(IdentifiableDelta)
	if !ok {
		return nil, fmt.Errorf("stateful transformer: message does not implement IdentifiableDelta: %T", msg)
	}

	subID := delta.SubscriptionID()
	iob, known := t.books[subID]
	if !known {
		return nil, model.NewUnidentifiableError(subID)
	}

	book, emit, dataErr := iob.Updater.Apply(iob.Book, msg)
	if dataErr != nil {
		return nil, dataErr
	}
	if !emit {
		return nil, nil
	}
	iob.Book = book

	return []model.MarketEvent[model.DataKind]{{
		ExchangeTimestamp: book.Timestamp,
		LocalTimestamp:    localTs,
		Exchange:          exchange,
		Instrument:        iob.Instrument,
		Payload:           book,
	}}, nil
}

// PongTransformer pairs another Transformer with a pong predicate. Its
// Transform delegates to Inner unchanged and does not call TryPong; the pong
// side-channel recovery for frames that fail to parse is done by
// ExchangeStream through its parser's TryPong, before any Transformer runs.
type PongTransformer struct {
	Inner   Transformer
	TryPong func(raw []byte) bool
}

func (t *PongTransformer) Transform(exchange model.ExchangeID, localTs time.Time, msg any) ([]model.MarketEvent[model.DataKind], error) {
	return t.Inner.Transform(exchange, localTs, msg)
}
