package data

import (
	"context"
	"testing"
	"time"

	"wednesday-engine/internal/model"
)

func TestHistoricalMarketFeedReplaysThenFinishes(t *testing.T) {
	events := []model.MarketEvent[model.DataKind]{
		{Instrument: model.NewInstrument("btc", "usdt", model.Spot)},
		{Instrument: model.NewInstrument("eth", "usdt", model.Spot)},
	}
	feed := NewHistoricalMarketFeed(events)
	ctx := context.Background()

	for i, want := range events {
		got := feed.Next(ctx)
		if got.State != FeedNext {
			t.Fatalf("event %d: expected FeedNext, got %v", i, got.State)
		}
		if got.Event.Instrument != want.Instrument {
			t.Fatalf("event %d: unexpected instrument %+v", i, got.Event.Instrument)
		}
	}

	if got := feed.Next(ctx); got.State != FeedFinished {
		t.Fatalf("expected FeedFinished after exhausting events, got %v", got.State)
	}
}

func TestLiveMarketFeedBlocksUntilSend(t *testing.T) {
	ch := make(chan model.MarketEvent[model.DataKind])
	feed := NewLiveMarketFeed(ch)

	result := make(chan Feed, 1)
	go func() { result <- feed.Next(context.Background()) }()

	select {
	case <-result:
		t.Fatal("Next returned before any event was sent")
	case <-time.After(20 * time.Millisecond):
	}

	ch <- model.MarketEvent[model.DataKind]{Instrument: model.NewInstrument("btc", "usdt", model.Spot)}

	select {
	case got := <-result:
		if got.State != FeedNext {
			t.Fatalf("expected FeedNext, got %v", got.State)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not return after send")
	}
}

func TestLiveMarketFeedFinishesOnContextCancel(t *testing.T) {
	ch := make(chan model.MarketEvent[model.DataKind])
	feed := NewLiveMarketFeed(ch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := feed.Next(ctx); got.State != FeedFinished {
		t.Fatalf("expected FeedFinished on cancelled context, got %v", got.State)
	}
}

func TestLiveMarketFeedFinishesOnClosedChannel(t *testing.T) {
	ch := make(chan model.MarketEvent[model.DataKind])
	close(ch)
	feed := NewLiveMarketFeed(ch)

	if got := feed.Next(context.Background()); got.State != FeedFinished {
		t.Fatalf("expected FeedFinished on closed channel, got %v", got.State)
	}
}
