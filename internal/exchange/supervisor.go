package exchange

import (
	"context"
	"log/slog"
	"time"

	"wednesday-engine/internal/model"
)

const (
	initialBackoff       = 1000 * time.Millisecond
	maxConsecutiveInitFailures = 5
)

// Supervisor runs the per-(Exchange, Kind) reconnection loop: exponential
// backoff from 1s, doubling on each failed connection
// attempt, surfacing the last error after 5 consecutive init failures.
// While live, every successfully transformed event is forwarded to the
// shared ExchangeChannel; non-terminal data errors are logged and the
// stream keeps running; terminal errors and graceful stream ends trigger a
// reconnect.
type Supervisor struct {
	Connector Connector
	Kind      model.SubscriptionKind
	Subs      []model.Subscription
	Channel   *ExchangeChannel
	Logger    *slog.Logger

	// InitialBackoff overrides the 1s starting backoff when non-zero;
	// tests shrink it to keep the 5-failure path fast.
	InitialBackoff time.Duration
}

// Run blocks until ctx is cancelled or 5 consecutive init failures occur, in
// which case it returns the last initialization error.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 1
	backoff := s.InitialBackoff
	if backoff <= 0 {
		backoff = initialBackoff
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stream, pingStop, err := s.connect(ctx)
		if err != nil {
			s.Logger.Warn("stream initialization failed", "attempt", attempt, "error", err)

			if attempt >= maxConsecutiveInitFailures {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			attempt++
			backoff *= 2
			continue
		}

		attempt = 1
		backoff = s.InitialBackoff
		if backoff <= 0 {
			backoff = initialBackoff
		}

		reconnect := s.drain(ctx, stream)
		if pingStop != nil {
			pingStop()
		}
		stream.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !reconnect {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) (*ExchangeStream, context.CancelFunc, error) {
	transport, instrumentMap, err := Subscribe(ctx, s.Connector, s.Subs, s.Logger)
	if err != nil {
		return nil, nil, err
	}

	transformer, err := s.Connector.NewTransformer(ctx, s.Kind, instrumentMap)
	if err != nil {
		transport.Close()
		return nil, nil, err
	}

	stream := NewExchangeStream(transport, s.Connector.NewFrameParser(), transformer, s.Connector.ID())

	var cancelPing context.CancelFunc
	if period, build, ok := s.Connector.PingInterval(); ok {
		pingCtx, cancel := context.WithCancel(ctx)
		cancelPing = cancel
		go s.runPing(pingCtx, transport, period, build)
	}

	return stream, cancelPing, nil
}

func (s *Supervisor) runPing(ctx context.Context, transport Transport, period time.Duration, build func() WsMessage) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := transport.WriteMessage(build()); err != nil {
				s.Logger.Debug("ping send failed", "error", err)
				return
			}
		}
	}
}

// drain forwards events until the stream needs tearing down; it returns
// true if the caller should reconnect.
func (s *Supervisor) drain(ctx context.Context, stream *ExchangeStream) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		item := stream.Next()

		switch {
		case item.Ended:
			s.Logger.Info("exchange stream ended, reconnecting", "exchange", s.Connector.ID(), "reason", item.EndErr)
			return true

		case item.DataErr != nil:
			if item.DataErr.IsTerminal() {
				s.Logger.Warn("terminal data error, reconnecting", "exchange", s.Connector.ID(), "error", item.DataErr)
				return true
			}
			s.Logger.Debug("non-terminal data error, continuing", "exchange", s.Connector.ID(), "error", item.DataErr)
			continue

		default:
			if !item.HasEvent {
				continue // nothing to forward this poll (control frame / buffered heartbeat)
			}
			s.Channel.Send(item.Event, s.Logger)
		}
	}
}
