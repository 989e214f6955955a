// Package bybit implements the generic exchange.Connector framework for
// Bybit Spot. Unlike Binance, Bybit publishes no REST depth snapshot, pings
// over the WebSocket itself, and acks subscriptions through a three-way
// ret_msg/op/success rule.
package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wednesday-engine/internal/model"
)

const (
	channelTrades      = "publicTrade"
	channelOrderBookL2 = "orderbook.50"
)

func marketTag(instrument model.Instrument) string {
	return strings.ToUpper(instrument.Base + instrument.Quote)
}

// level is one [price, amount] pair, Bybit's own two-element string array.
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
	for i, lv := range levels {
		out[i] = model.Level{Price: lv.Price, Amount: lv.Amount}
	}
	return out
}

// envelope is the common wrapper around every Bybit data frame:
// "topic" identifies the subscription, "ts" is the exchange timestamp,
// "data" carries the trade array or order-book delta.
type envelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	TsMs  int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

func (e envelope) exchangeTime() time.Time {
	return time.UnixMilli(e.TsMs).UTC()
}

// subscriptionIDFromTopic implements de_bybit_message_subscription_id:
// "publicTrade.BTCUSDT" -> "publicTrade|BTCUSDT",
// "orderbook.50.BTCUSDT" -> "orderbook.50|BTCUSDT".
func subscriptionIDFromTopic(topic string) (model.SubscriptionID, error) {
	parts := strings.Split(topic, ".")
	switch parts[0] {
	case "publicTrade":
		if len(parts) != 2 {
			return "", fmt.Errorf("malformed publicTrade topic: %q", topic)
		}
		return model.NewSubscriptionID(channelTrades, parts[1]), nil
	case "orderbook":
		if len(parts) != 3 {
			return "", fmt.Errorf("malformed orderbook topic: %q", topic)
		}
		return model.NewSubscriptionID(channelOrderBookL2, parts[2]), nil
	default:
		return "", fmt.Errorf("unrecognised topic: %q", topic)
	}
}

// tradeInner is one element of a publicTrade payload's "data" array.
type tradeInner struct {
	TimeMs int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Amount string `json:"v"`
	Price  string `json:"p"`
	ID     string `json:"i"`
}

// tradePayload is an already-dispatched publicTrade message, one event per
// element of Trades.
type tradePayload struct {
	subID  model.SubscriptionID
	tsExch time.Time
	trades []tradeInner
}

func parseTradePayload(env envelope) (tradePayload, error) {
	subID, err := subscriptionIDFromTopic(env.Topic)
	if err != nil {
		return tradePayload{}, err
	}
	var trades []tradeInner
	if err := json.Unmarshal(env.Data, &trades); err != nil {
		return tradePayload{}, err
	}
	return tradePayload{subID: subID, tsExch: env.exchangeTime(), trades: trades}, nil
}

func (p tradePayload) SubscriptionID() model.SubscriptionID { return p.subID }
func (p tradePayload) ExchangeTime() time.Time               { return p.tsExch }

// ToDataKind returns only the first trade print; multi-print frames are
// split into one MarketEvent per print by the caller via ToDataKinds.
func (p tradePayload) ToDataKind() model.DataKind {
	kinds := p.ToDataKinds()
	if len(kinds) == 0 {
		return model.PublicTrade{}
	}
	return kinds[0]
}

// ToDataKinds expands every print in one publicTrade frame (Bybit batches
// multiple prints per message; the source's BybitTrade::into<MarketIter>
// emits one MarketEvent per print).
func (p tradePayload) ToDataKinds() []model.PublicTrade {
	out := make([]model.PublicTrade, 0, len(p.trades))
	for _, tr := range p.trades {
		price, _ := strconv.ParseFloat(tr.Price, 64)
		amount, _ := strconv.ParseFloat(tr.Amount, 64)
		side := model.Buy
		if strings.EqualFold(tr.Side, "sell") {
			side = model.Sell
		}
		out = append(out, model.PublicTrade{
			ID:        tr.ID,
			Price:     price,
			Quantity:  amount,
			Aggressor: side,
		})
	}
	return out
}

// depthDelta is one orderbook.50 "data" object.
type depthDelta struct {
	Symbol       string  `json:"s"`
	LastUpdateID uint64  `json:"u"`
	Sequence     uint64  `json:"seq"`
	Asks         []level `json:"a"`
	Bids         []level `json:"b"`
}

type depthPayload struct {
	subID model.SubscriptionID
	delta depthDelta
}

func parseDepthPayload(env envelope) (depthPayload, error) {
	subID, err := subscriptionIDFromTopic(env.Topic)
	if err != nil {
		return depthPayload{}, err
	}
	var delta depthDelta
	if err := json.Unmarshal(env.Data, &delta); err != nil {
		return depthPayload{}, err
	}
	return depthPayload{subID: subID, delta: delta}, nil
}

func (p depthPayload) SubscriptionID() model.SubscriptionID { return p.subID }

// subscriptionResponse is Bybit's ack/pong/nack frame.
type subscriptionResponse struct {
	Success bool   `json:"success"`
	RetMsg  string `json:"ret_msg"`
	ConnID  string `json:"conn_id"`
	ReqID   string `json:"req_id"`
	Op      string `json:"op"`
}

// validate implements the three-way rule from BybitReturnMessage::validate:
// "pong" always succeeds (it's a ping ack, not a subscription ack); "" with
// op=="subscribe" requires success; the explicit "subscribe" ret_msg also
// requires success; anything else is an unknown response.
func (r subscriptionResponse) validate() error {
	switch r.RetMsg {
	case "pong":
		return nil
	case "", "None":
		if r.Op == "subscribe" && r.Success {
			return nil
		}
		return model.NewSubscribeError("received failure subscription response")
	case "subscribe":
		if r.Success {
			return nil
		}
		return model.NewSubscribeError("received failure subscription response")
	default:
		return model.NewSubscribeError("received unknown subscription response")
	}
}

func (r subscriptionResponse) isPong() bool { return r.RetMsg == "pong" }
