package model

import "fmt"

// SubscriptionKind determines the event payload type a Subscription streams.
type SubscriptionKind int

const (
	PublicTrades SubscriptionKind = iota
	OrderBooksL1
	OrderBooksL2
	OrderBooksL3
	Bars
)

func (k SubscriptionKind) String() string {
	switch k {
	case PublicTrades:
		return "public_trades"
	case OrderBooksL1:
		return "order_books_l1"
	case OrderBooksL2:
		return "order_books_l2"
	case OrderBooksL3:
		return "order_books_l3"
	case Bars:
		return "bars"
	default:
		return "unknown_kind"
	}
}

// Subscription is a user-level request: one exchange, one instrument, one
// kind of stream. Subscriptions are deduplicated and sorted before being
// grouped by (Exchange, Kind) in the stream builder.
type Subscription struct {
	Exchange   ExchangeID
	Instrument Instrument
	Kind       SubscriptionKind
}

func NewSubscription(exchange ExchangeID, instrument Instrument, kind SubscriptionKind) Subscription {
	return Subscription{Exchange: exchange, Instrument: instrument, Kind: kind}
}

// Less gives Subscription a total order so that batches can be sorted
// deterministically.
func (s Subscription) Less(other Subscription) bool {
	if s.Exchange != other.Exchange {
		return s.Exchange < other.Exchange
	}
	if s.Kind != other.Kind {
		return s.Kind < other.Kind
	}
	return s.Instrument.Less(other.Instrument)
}

// SubscriptionID is the opaque string a subscriber uses to key inbound
// messages back to the Instrument that requested them, e.g. "@trade|BTCUSDT"
// or "orderbook.50|BTCUSDT".
type SubscriptionID string

// NewSubscriptionID builds the canonical "{channel-tag}|{market-tag}" or
// "{channel-tag}.{level}|{market-tag}" form.
func NewSubscriptionID(channelTag, marketTag string) SubscriptionID {
	return SubscriptionID(fmt.Sprintf("%s|%s", channelTag, marketTag))
}

// ExchangeSubscription is the translated, wire-ready form of a Subscription:
// a channel tag (exchange/kind specific, e.g. "@trade" or "orderbook.50")
// plus a market tag (e.g. "BTCUSDT"), from which a SubscriptionID is derived.
type ExchangeSubscription struct {
	ChannelTag string
	MarketTag  string
	Sub        Subscription
}

func (es ExchangeSubscription) ID() SubscriptionID {
	return NewSubscriptionID(es.ChannelTag, es.MarketTag)
}
