package exchange

import (
	"context"
	"log/slog"
	"sort"

	"wednesday-engine/internal/model"
)

// ConnectorFactory builds the Connector for one (ExchangeID, SubscriptionKind)
// pair. Concrete exchange subpackages register themselves in a dispatch
// table passed to NewStreamBuilder.
type ConnectorFactory func() Connector

// ConnectorKey identifies one dispatch table entry.
type ConnectorKey struct {
	Exchange model.ExchangeID
	Kind     model.SubscriptionKind
}

// Streams is the result of building: one ExchangeChannel per exchange that
// had at least one subscription, each fed by one Supervisor per
// (Exchange, Kind) group sharing that exchange's channel.
type Streams struct {
	channels map[model.ExchangeID]*ExchangeChannel
	cancel   context.CancelFunc
	done     chan struct{}
}

// Select returns the receiver for one exchange, or ok=false if no
// subscription batch targeted it.
func (s *Streams) Select(exchange model.ExchangeID) (<-chan model.MarketEvent[model.DataKind], bool) {
	ch, ok := s.channels[exchange]
	if !ok {
		return nil, false
	}
	return ch.Receiver(), true
}

// Join merges every exchange's stream into one channel
// merges every stream into one"). Each underlying ExchangeChannel lives for
// the process lifetime, so the merged channel is never closed by this
// method; callers tear down via Streams.Shutdown.
func (s *Streams) Join() <-chan model.MarketEvent[model.DataKind] {
	out := make(chan model.MarketEvent[model.DataKind])
	for _, ch := range s.channels {
		ch := ch
		go func() {
			for ev := range ch.Receiver() {
				out <- ev
			}
		}()
	}
	return out
}

// JoinMap is like Join but tags every forwarded event with the exchange it
// came from, for callers that need to distinguish sources after merging.
func (s *Streams) JoinMap() <-chan ExchangeEvent {
	out := make(chan ExchangeEvent)
	for exchange, ch := range s.channels {
		exchange, ch := exchange, ch
		go func() {
			for ev := range ch.Receiver() {
				out <- ExchangeEvent{Exchange: exchange, Event: ev}
			}
		}()
	}
	return out
}

// ExchangeEvent tags a MarketEvent with the exchange its Supervisor read it
// from, ahead of the event's own Exchange field being trusted (used by
// JoinMap as a quick routing key without dereferencing Payload).
type ExchangeEvent struct {
	Exchange model.ExchangeID
	Event    model.MarketEvent[model.DataKind]
}

// StreamBuilder accumulates subscription batches from repeated Subscribe
// calls before a single Init spawns one Supervisor per distinct
// (Exchange, Kind) group.
type StreamBuilder struct {
	factories map[ConnectorKey]ConnectorFactory
	subs      []model.Subscription
	logger    *slog.Logger
}

func NewStreamBuilder(factories map[ConnectorKey]ConnectorFactory, logger *slog.Logger) *StreamBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamBuilder{factories: factories, logger: logger}
}

// Subscribe queues a batch of cross-exchange subscriptions for the next
// Init. It can be called multiple times before Init; duplicate
// Subscriptions across calls are deduplicated.
func (b *StreamBuilder) Subscribe(subs ...model.Subscription) *StreamBuilder {
	b.subs = append(b.subs, subs...)
	return b
}

// Init validates every queued subscription against the dispatch table,
// deduplicates and sorts them, groups by (Exchange, Kind), and spawns one Supervisor goroutine per group, each
// running its own reconnect-with-backoff loop indefinitely. It returns as
// soon as the groups and channels are set up; the caller owns the returned
// Streams and tears everything down via Shutdown.
func (b *StreamBuilder) Init(ctx context.Context) (*Streams, error) {
	unique := dedupeAndSort(b.subs)

	groups := make(map[ConnectorKey][]model.Subscription)
	for _, sub := range unique {
		key := ConnectorKey{Exchange: sub.Exchange, Kind: sub.Kind}
		if _, ok := b.factories[key]; !ok {
			return nil, model.NewUnsupportedError("exchange/kind combination", key.Exchange.String()+"/"+key.Kind.String())
		}
		groups[key] = append(groups[key], sub)
	}

	runCtx, cancel := context.WithCancel(ctx)
	channels := make(map[model.ExchangeID]*ExchangeChannel)
	for key := range groups {
		if _, ok := channels[key.Exchange]; !ok {
			channels[key.Exchange] = NewExchangeChannel()
		}
	}

	var pending int
	finished := make(chan struct{}, len(groups))
	for key, subs := range groups {
		pending++
		key, subs := key, subs
		connector := b.factories[key]()
		sup := &Supervisor{
			Connector: connector,
			Kind:      key.Kind,
			Subs:      subs,
			Channel:   channels[key.Exchange],
			Logger:    b.logger.With("exchange", key.Exchange, "kind", key.Kind),
		}

		go func() {
			defer func() { finished <- struct{}{} }()
			if err := sup.Run(runCtx); err != nil && runCtx.Err() == nil {
				b.logger.Error("supervisor terminated permanently", "exchange", key.Exchange, "kind", key.Kind, "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < pending; i++ {
			<-finished
		}
		close(done)
	}()

	return &Streams{channels: channels, cancel: cancel, done: done}, nil
}

// Shutdown cancels every Supervisor spawned by Init and waits for them to
// return.
func (s *Streams) Shutdown() {
	s.cancel()
	<-s.done
}

// dedupeAndSort sorts subscriptions into a
// deterministic total order, then drop exact duplicates.
func dedupeAndSort(subs []model.Subscription) []model.Subscription {
	sorted := make([]model.Subscription, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	unique := sorted[:0]
	for i, sub := range sorted {
		if i == 0 || sub != sorted[i-1] {
			unique = append(unique, sub)
		}
	}
	return unique
}
