package exchange

import (
	"time"

	"wednesday-engine/internal/model"

	"github.com/gorilla/websocket"
)

// FrameParser turns one raw transport frame into an exchange message, or
// nil with no error for control frames (ping/pong/frame) the exchange
// layer shouldn't forward to the transformer.
type FrameParser interface {
	Parse(frame WsMessage) (msg any, err error)
	// TryPong attempts the pong/heartbeat side-channel parse; returns true
	// if frame was recognised as a heartbeat.
	TryPong(frame WsMessage) bool
}

// StreamItem is one polled result from an ExchangeStream: exactly one of
// Event/DataErr is meaningful when Ended is false; Ended signals the stream
// itself has finished (transport closed, gracefully or not) and the
// Supervisor should tear down and reconnect.
type StreamItem struct {
	HasEvent bool
	Event    model.MarketEvent[model.DataKind]
	DataErr  *model.DataError
	Ended    bool
	EndErr   error
}

// ExchangeStream couples a transport frame parser, the Transformer, and an
// output buffer into a lazy sequence of market events. Output
// ordering exactly follows message arrival within one connection; callers
// must drain the buffer via Next before the next transport poll.
type ExchangeStream struct {
	transport   Transport
	parser      FrameParser
	transformer Transformer
	exchange    model.ExchangeID
	buffer      []model.MarketEvent[model.DataKind]
}

func NewExchangeStream(transport Transport, parser FrameParser, transformer Transformer, exchange model.ExchangeID) *ExchangeStream {
	return &ExchangeStream{transport: transport, parser: parser, transformer: transformer, exchange: exchange}
}

// Next yields the next item: a buffered event, a freshly parsed+transformed
// one, a data error from the transformer, or stream-ended.
func (s *ExchangeStream) Next() StreamItem {
	if len(s.buffer) > 0 {
		event := s.buffer[0]
		s.buffer = s.buffer[1:]
		return StreamItem{HasEvent: true, Event: event}
	}

	frame, err := s.transport.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return StreamItem{Ended: true, EndErr: model.NewTerminatedError(err.Error())}
		}
		return StreamItem{Ended: true, EndErr: model.NewWebSocketConnectionError("transport read failed", err)}
	}

	msg, parseErr := s.parser.Parse(frame)
	if parseErr != nil {
		if s.parser.TryPong(frame) {
			return StreamItem{} // swallowed heartbeat — caller polls again
		}
		return StreamItem{DataErr: model.NewSocketDataError(model.NewDeserializingJSONError(parseErr))}
	}
	if msg == nil {
		return StreamItem{} // control frame (ping/pong/frame): caller polls again
	}

	events, transformErr := s.transformer.Transform(s.exchange, time.Now(), msg)
	if transformErr != nil {
		if socketErr, ok := transformErr.(*model.SocketError); ok {
			return StreamItem{DataErr: model.NewSocketDataError(socketErr)}
		}
		if dataErr, ok := transformErr.(*model.DataError); ok {
			return StreamItem{DataErr: dataErr}
		}
		return StreamItem{DataErr: model.NewSocketDataError(model.NewDeserializingJSONError(transformErr))}
	}
	if len(events) == 0 {
		return StreamItem{} // delta dropped/pre-snapshot: no event this poll
	}

	s.buffer = events[1:]
	return StreamItem{HasEvent: true, Event: events[0]}
}

func (s *ExchangeStream) Close() error {
	return s.transport.Close()
}
