package exchange

import (
	"context"
	"log/slog"
	"time"

	"wednesday-engine/internal/model"
)

// SubscriptionValidator reads frames off a Transport during the
// subscription handshake and classifies each one.
type SubscriptionValidator interface {
	// ParseResponse attempts to parse a raw frame as this exchange's
	// SubscriptionResponse shape. ok is false when the frame isn't
	// JSON-shaped like a response at all (the caller then checks IsClose or
	// skips it as "other").
	ParseResponse(frame WsMessage) (resp any, ok bool, err error)

	// Validate classifies an already-parsed response as success (nil) or
	// failure (a *model.SocketError).
	Validate(resp any) error

	// IsClose reports whether a raw frame is a close frame, and if so the
	// close detail to report.
	IsClose(frame WsMessage) (detail string, isClose bool)
}

// ValidateSubscriptions drives the handshake loop: classify
// every inbound frame as a parseable response (fed to Validate), a
// deserialization failure (logged at debug and ignored — it may be a late
// data frame), a close frame (fails with Subscribe(close-details)), or
// "other" (skipped). Succeeds once `expected` responses validate; fails on
// the first negative validation or once timeout elapses.
func ValidateSubscriptions(ctx context.Context, transport Transport, validator SubscriptionValidator, expected int, timeout time.Duration, logger *slog.Logger) error {
	if expected == 0 {
		return nil
	}

	type frameOrErr struct {
		frame WsMessage
		err   error
	}
	frames := make(chan frameOrErr)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			frame, err := transport.ReadMessage()
			select {
			case frames <- frameOrErr{frame: frame, err: err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	deadline := time.After(timeout)
	successes := 0

	for {
		select {
		case <-ctx.Done():
			return model.NewSubscribeError("cancelled")
		case <-deadline:
			return model.NewSubscribeError("timeout waiting for subscription acknowledgement")
		case item := <-frames:
			if item.err != nil {
				return model.NewWebSocketConnectionError("transport closed during validation", item.err)
			}

			if detail, isClose := validator.IsClose(item.frame); isClose {
				return model.NewSubscribeError(detail)
			}

			resp, ok, parseErr := validator.ParseResponse(item.frame)
			if parseErr != nil {
				logger.Debug("ignoring unparseable subscription frame", "error", parseErr)
				continue
			}
			if !ok {
				continue
			}

			if err := validator.Validate(resp); err != nil {
				return err
			}

			successes++
			if successes >= expected {
				return nil
			}
		}
	}
}
