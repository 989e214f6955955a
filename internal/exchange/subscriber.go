package exchange

import (
	"context"
	"log/slog"

	"wednesday-engine/internal/model"
)

// Subscribe opens one exchange connection: validate locally, dial,
// translate into
// wire subscriptions, send the request frames, run the Validator, and
// return the resolved instrument map on success.
func Subscribe(ctx context.Context, connector Connector, subs []model.Subscription, logger *slog.Logger) (Transport, map[model.SubscriptionID]model.Instrument, error) {
	for _, sub := range subs {
		if !sub.Exchange.Supports(sub.Instrument.Kind) {
			return nil, nil, model.NewUnsupportedError("instrument", sub.Instrument.Kind.String())
		}
	}

	addr, err := connector.URL()
	if err != nil {
		return nil, nil, model.NewUrlParseError(err)
	}

	transport, err := Dial(ctx, addr.String())
	if err != nil {
		return nil, nil, model.NewWebSocketConnectionError("dial failed", err)
	}

	instrumentMap := make(map[model.SubscriptionID]model.Instrument, len(subs))
	exchangeSubs := make([]model.ExchangeSubscription, 0, len(subs))
	for _, sub := range subs {
		exSub, err := connector.Translate(sub)
		if err != nil {
			transport.Close()
			return nil, nil, err
		}
		exchangeSubs = append(exchangeSubs, exSub)
		instrumentMap[exSub.ID()] = sub.Instrument
	}

	for _, req := range connector.Requests(exchangeSubs) {
		if err := transport.WriteMessage(req); err != nil {
			transport.Close()
			return nil, nil, model.NewWebSocketConnectionError("send subscription request failed", err)
		}
	}

	timeout := connector.SubscriptionTimeout()
	if timeout <= 0 {
		timeout = DefaultSubscriptionTimeout
	}

	validator := connector.NewValidator()
	expected := connector.ExpectedResponses(instrumentMap)
	if err := ValidateSubscriptions(ctx, transport, validator, expected, timeout, logger); err != nil {
		transport.Close()
		return nil, nil, err
	}

	return transport, instrumentMap, nil
}
