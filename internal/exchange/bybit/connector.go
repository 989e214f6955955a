package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"wednesday-engine/internal/exchange"
	"wednesday-engine/internal/model"

	"github.com/gorilla/websocket"
)

const (
	wsURLSpot    = "wss://stream.bybit.com/v5/public/spot"
	pingInterval = 5 * time.Second
)

// Connector implements exchange.Connector for Bybit Spot, grounded on
// Bybit Perpetual shares the same wire protocol on a different URL and
// would be wired the same way.
type Connector struct{}

func NewSpotConnector() *Connector { return &Connector{} }

func (c *Connector) ID() model.ExchangeID { return model.BybitSpot }

func (c *Connector) URL() (*url.URL, error) {
	return url.Parse(wsURLSpot)
}

// Requests builds a single combined "op":"subscribe" frame.
func (c *Connector) Requests(subs []model.ExchangeSubscription) []exchange.WsMessage {
	args := make([]string, len(subs))
	for i, sub := range subs {
		args[i] = fmt.Sprintf("%s.%s", sub.ChannelTag, sub.MarketTag)
	}

	payload, _ := json.Marshal(map[string]any{
		"op":   "subscribe",
		"args": args,
	})

	return []exchange.WsMessage{{Type: websocket.TextMessage, Payload: payload}}
}

// PingInterval sends {"op":"ping"} every 5s; Bybit's own session times out
// a connection that goes silent, unlike Binance.
func (c *Connector) PingInterval() (time.Duration, func() exchange.WsMessage, bool) {
	return pingInterval, func() exchange.WsMessage {
		payload, _ := json.Marshal(map[string]string{"op": "ping"})
		return exchange.WsMessage{Type: websocket.TextMessage, Payload: payload}
	}, true
}

func (c *Connector) ExpectedResponses(_ map[model.SubscriptionID]model.Instrument) int {
	return 1
}

func (c *Connector) SubscriptionTimeout() time.Duration {
	return exchange.DefaultSubscriptionTimeout
}

func (c *Connector) Translate(sub model.Subscription) (model.ExchangeSubscription, error) {
	channel, err := channelFor(sub.Kind)
	if err != nil {
		return model.ExchangeSubscription{}, err
	}
	return model.ExchangeSubscription{
		ChannelTag: channel,
		MarketTag:  marketTag(sub.Instrument),
		Sub:        sub,
	}, nil
}

func channelFor(kind model.SubscriptionKind) (string, error) {
	switch kind {
	case model.PublicTrades:
		return channelTrades, nil
	case model.OrderBooksL2:
		return channelOrderBookL2, nil
	default:
		return "", model.NewUnsupportedError("subscription kind", kind.String())
	}
}

func (c *Connector) NewValidator() exchange.SubscriptionValidator {
	return &validator{}
}

func (c *Connector) NewTransformer(ctx context.Context, kind model.SubscriptionKind, instrumentMap map[model.SubscriptionID]model.Instrument) (exchange.Transformer, error) {
	switch kind {
	case model.PublicTrades:
		return newTradeTransformer(instrumentMap), nil
	case model.OrderBooksL2:
		return exchange.NewStatefulTransformer(ctx, instrumentMap, func(instrument model.Instrument) exchange.OrderBookUpdater {
			return NewBookUpdater(instrument)
		})
	default:
		return nil, model.NewUnsupportedError("subscription kind", kind.String())
	}
}

func (c *Connector) NewFrameParser() exchange.FrameParser {
	return &frameParser{}
}

// frameParser dispatches on the "topic" prefix shared by every Bybit data
// frame; subscription acks/pongs carry no "topic" and are parsed during the
// handshake by validator, so they surface here as a parse miss that
// ExchangeStream treats as a control frame.
type frameParser struct{}

func (p *frameParser) Parse(frame exchange.WsMessage) (any, error) {
	var env envelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return nil, err
	}
	if env.Topic == "" {
		return nil, nil
	}

	switch {
	case len(env.Topic) >= len(channelTrades) && env.Topic[:len(channelTrades)] == channelTrades:
		return parseTradePayload(env)
	default:
		return parseDepthPayload(env)
	}
}

// TryPong recognises the {"success":true,"ret_msg":"pong",...} heartbeat
// Bybit sends in reply to our ping; unlike a close frame, it carries no
// "topic" so frameParser.Parse alone can't route it.
func (p *frameParser) TryPong(frame exchange.WsMessage) bool {
	var resp subscriptionResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return false
	}
	return resp.isPong()
}

// validator implements exchange.SubscriptionValidator for Bybit's
// success/ret_msg/op ack shape.
type validator struct{}

func (v *validator) ParseResponse(frame exchange.WsMessage) (any, bool, error) {
	var resp subscriptionResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return nil, false, err
	}
	if resp.Op == "" && resp.RetMsg == "" {
		return nil, false, fmt.Errorf("not a subscription response")
	}
	return resp, true, nil
}

func (v *validator) Validate(resp any) error {
	r, ok := resp.(subscriptionResponse)
	if !ok {
		return model.NewSubscribeError("unexpected subscription response type")
	}
	return r.validate()
}

func (v *validator) IsClose(frame exchange.WsMessage) (string, bool) {
	return "", false
}
