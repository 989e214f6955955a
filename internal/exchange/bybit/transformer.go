package bybit

import (
	"fmt"
	"time"

	"wednesday-engine/internal/exchange"
	"wednesday-engine/internal/model"
)

// tradeTransformer handles publicTrade subscriptions. It can't reuse
// exchange.StatelessTransformer because Bybit batches multiple trade prints
// into one frame (BybitTrade::into<MarketIter> emits one MarketEvent per
// print, not one per frame).
type tradeTransformer struct {
	instrumentMap map[model.SubscriptionID]model.Instrument
}

func newTradeTransformer(instrumentMap map[model.SubscriptionID]model.Instrument) *tradeTransformer {
	return &tradeTransformer{instrumentMap: instrumentMap}
}

func (t *tradeTransformer) Transform(exchangeID model.ExchangeID, localTs time.Time, msg any) ([]model.MarketEvent[model.DataKind], error) {
	payload, ok := msg.(tradePayload)
	if !ok {
		return nil, fmt.Errorf("bybit trade transformer: unexpected message type %T", msg)
	}

	instrument, known := t.instrumentMap[payload.subID]
	if !known {
		return nil, model.NewUnidentifiableError(payload.subID)
	}

	prints := payload.ToDataKinds()
	events := make([]model.MarketEvent[model.DataKind], len(prints))
	for i, print := range prints {
		events[i] = model.MarketEvent[model.DataKind]{
			ExchangeTimestamp: payload.tsExch,
			LocalTimestamp:    localTs,
			Exchange:          exchangeID,
			Instrument:        instrument,
			Payload:           print,
		}
	}
	return events, nil
}

var _ exchange.Transformer = (*tradeTransformer)(nil)
