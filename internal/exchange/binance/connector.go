package binance

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
	wsURLSpot = "wss://stream.binance.com:9443/ws"
)

// Connector implements exchange.Connector for Binance Spot. Binance Futures
// USD-margined streams share the identical wire protocol, so a
// second Connector value differing only in ID/URL/instrument-kind would be
// added the same way; only Spot is wired today since it's the only venue
// here that needs full L2 book maintenance via REST snapshot.
type Connector struct{}

func NewSpotConnector() *Connector { return &Connector{} }

func (c *Connector) ID() model.ExchangeID { return model.BinanceSpot }

func (c *Connector) URL() (*url.URL, error) {
	u, err := url.Parse(wsURLSpot)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Requests builds a single combined SUBSCRIBE frame naming every stream.
func (c *Connector) Requests(subs []model.ExchangeSubscription) []exchange.WsMessage {
	streams := make([]string, len(subs))
	for i, sub := range subs {
		streams[i] = toLower(sub.MarketTag) + sub.ChannelTag
	}

	payload, _ := json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     1,
	})

	return []exchange.WsMessage{{Type: websocket.TextMessage, Payload: payload}}
}

// PingInterval: Binance needs no application-level ping; gorilla/websocket
// answers protocol-level ping control frames transparently.
func (c *Connector) PingInterval() (time.Duration, func() exchange.WsMessage, bool) {
	return 0, nil, false
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
		// Uppercase to match the "s" field Binance echoes on every trade
		// and depthUpdate frame, so SubscriptionID derivation agrees on
		// both the handshake side and the live message side.
		MarketTag: toUpper(marketTag(sub.Instrument)),
		Sub:       sub,
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
		return exchange.NewStatelessTransformer(instrumentMap), nil
	case model.OrderBooksL2:
		return exchange.NewStatefulTransformer(ctx, instrumentMap, func(instrument model.Instrument) exchange.OrderBookUpdater {
			return NewSpotBookUpdater(instrument)
		})
	default:
		return nil, model.NewUnsupportedError("subscription kind", kind.String())
	}
}

func (c *Connector) NewFrameParser() exchange.FrameParser {
	return &frameParser{}
}

// frameParser dispatches on the "e" discriminator: "trade" frames decode as
// trade, "depthUpdate" frames as depthDelta; subscription acks (no "e"
// field) are handled during the handshake, not here, so they surface as a
// parse miss and are swallowed by ExchangeStream as a control frame.
type frameParser struct{}

func (p *frameParser) Parse(frame exchange.WsMessage) (any, error) {
	var env wireEnvelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return nil, err
	}

	switch env.Event {
	case "trade":
		var t trade
		if err := json.Unmarshal(frame.Payload, &t); err != nil {
			return nil, err
		}
		return t, nil
	case "depthUpdate":
		var d depthDelta
		if err := json.Unmarshal(frame.Payload, &d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, nil
	}
}

func (p *frameParser) TryPong(frame exchange.WsMessage) bool {
	return false
}

// validator implements exchange.SubscriptionValidator for Binance's
// {"result":null,"id":N} / {"result":[...],"id":N} ack shape.
type validator struct{}

func (v *validator) ParseResponse(frame exchange.WsMessage) (any, bool, error) {
	var resp subscriptionResponse
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return nil, false, err
	}
	if resp.ID == 0 && len(resp.Result) == 0 {
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

func toLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
