// Package binance implements the generic exchange.Connector framework for
// Binance Spot, parsing its wire messages into normalized events. Only a
// Spot connector exists; USD-margined Futures streams are not wired.
package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wednesday-engine/internal/model"
)

// Channel tags mirror BinanceChannel in the source: every stream name is
// "{symbol-lower}{channel}" and every SubscriptionID is "{channel}|{SYMBOL}".
const (
	channelTrades      = "@trade"
	channelOrderBookL2 = "@depth@100ms"
)

func marketTag(instrument model.Instrument) string {
	return fmt.Sprintf("%s%s", instrument.Base, instrument.Quote)
}

func subscriptionID(channel, market string) model.SubscriptionID {
	return model.NewSubscriptionID(channel, market)
}

// level is one [price, amount] pair as Binance encodes it: a two-element
// JSON array of strings.
type level struct {
	Price  float64
	Amount float64
}

func (l *level) UnmarshalJSON(data []byte) error {
	var raw [2]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return err
	}
	amount, err := strconv.ParseFloat(raw[1], 64)
	if err != nil {
		return err
	}
	l.Price, l.Amount = price, amount
	return nil
}

func toModelLevels(levels []level) []model.Level {
	out := make([]model.Level, len(levels))
	for i, l := range levels {
		out[i] = model.Level{Price: l.Price, Amount: l.Amount}
	}
	return out
}

// trade is a raw Binance trade-stream message ("e":"trade").
type trade struct {
	Symbol      string `json:"s"`
	TradeID     uint64 `json:"t"`
	Price       string `json:"p"`
	Quantity    string `json:"q"`
	TradeTimeMs int64  `json:"T"`
	BuyerMaker  bool   `json:"m"`
}

func (t trade) SubscriptionID() model.SubscriptionID {
	return subscriptionID(channelTrades, t.Symbol)
}

func (t trade) ToDataKind() model.DataKind {
	price, _ := strconv.ParseFloat(t.Price, 64)
	amount, _ := strconv.ParseFloat(t.Quantity, 64)

	side := model.Buy
	if t.BuyerMaker {
		side = model.Sell
	}

	return model.PublicTrade{
		ID:        strconv.FormatUint(t.TradeID, 10),
		Price:     price,
		Quantity:  amount,
		Aggressor: side,
	}
}

func (t trade) ExchangeTime() time.Time {
	return time.UnixMilli(t.TradeTimeMs).UTC()
}

// depthDelta is a raw Binance depthUpdate message ("e":"depthUpdate").
type depthDelta struct {
	Symbol         string  `json:"s"`
	FirstUpdateID  uint64  `json:"U"`
	LastUpdateID   uint64  `json:"u"`
	Bids           []level `json:"b"`
	Asks           []level `json:"a"`
}

func (d depthDelta) SubscriptionID() model.SubscriptionID {
	return subscriptionID(channelOrderBookL2, d.Symbol)
}

// depthSnapshot is the REST GET /api/v3/depth response.
type depthSnapshot struct {
	LastUpdateID uint64  `json:"lastUpdateId"`
	Bids         []level `json:"bids"`
	Asks         []level `json:"asks"`
}

// subscriptionResponse is Binance's ack/nack for a SUBSCRIBE request: a null
// "result" means success, a non-null (even empty) array means failure.
type subscriptionResponse struct {
	Result json.RawMessage `json:"result"`
	ID     int             `json:"id"`
}

func (r subscriptionResponse) validate() error {
	if string(r.Result) == "null" || len(r.Result) == 0 {
		return nil
	}
	return model.NewSubscribeError("binance rejected subscription request")
}

// wireEnvelope sniffs the "e" discriminator field shared by trade and
// depthUpdate payloads without committing to a concrete type up front.
type wireEnvelope struct {
	Event string `json:"e"`
}
