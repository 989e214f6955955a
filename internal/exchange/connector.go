// Package exchange is the generic connectivity framework: it turns
// cross-exchange Subscriptions into exchange-specific wire messages,
// validates them, keeps local order books synchronized with exchange
// deltas, and supervises resilient streaming connections with reconnect and
// backoff. Per-venue specifics live in the binance and bybit subpackages and
// plug in through the Connector interface.
package exchange

import (
	"context"
	"net/url"
	"time"

	"wednesday-engine/internal/model"
)

// DefaultSubscriptionTimeout is the hard upper bound on subscription
// validation when a Connector doesn't specify its own.
const DefaultSubscriptionTimeout = 10 * time.Second

// WsMessage is a single outbound frame: exchanges speak JSON text frames for
// both subscribe requests and pings.
type WsMessage struct {
	Type    int // gorilla/websocket message type (TextMessage, PingMessage, ...)
	Payload []byte
}

// Connector is a compile-time description of an exchange: URL, subscription
// wire format, ping cadence, and which SubscriptionValidator/Transformer it
// uses. Binance and Bybit each implement this in their own subpackage; the
// dispatch table in builder.go picks the right Connector per
// (model.ExchangeID, model.SubscriptionKind) pair.
type Connector interface {
	ID() model.ExchangeID
	URL() (*url.URL, error)

	// Requests builds the wire messages to send immediately after connect.
	// Every subscription id must be requested by at least one returned
	// message; exact framing is exchange specific.
	Requests(subs []model.ExchangeSubscription) []WsMessage

	// PingInterval returns the keepalive cadence and the frame to send on
	// every tick, or ok=false if this venue needs no application-level ping.
	PingInterval() (period time.Duration, build func() WsMessage, ok bool)

	// ExpectedResponses is the number of subscription-acknowledgement frames
	// the Validator should wait for before declaring success.
	ExpectedResponses(instrumentMap map[model.SubscriptionID]model.Instrument) int

	SubscriptionTimeout() time.Duration

	// Translate turns one local Subscription into its wire-ready
	// ExchangeSubscription (channel tag + market tag).
	Translate(sub model.Subscription) (model.ExchangeSubscription, error)

	// NewValidator constructs this exchange's SubscriptionValidator.
	NewValidator() SubscriptionValidator

	// NewTransformer constructs the Transformer for one SubscriptionKind
	// group, given the instrument map resolved during subscription. For
	// order-book kinds this is where a connector fetches REST snapshots
	//, so it takes ctx.
	NewTransformer(ctx context.Context, kind model.SubscriptionKind, instrumentMap map[model.SubscriptionID]model.Instrument) (Transformer, error)

	// NewFrameParser constructs the raw-frame parser used by ExchangeStream.
	NewFrameParser() FrameParser
}
