package bybit

import (
	"encoding/json"
	"testing"

	"wednesday-engine/internal/model"
)

func TestSubscriptionIDFromTopicTrade(t *testing.T) {
	id, err := subscriptionIDFromTopic("publicTrade.BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := model.NewSubscriptionID(channelTrades, "BTCUSDT"); id != want {
		t.Fatalf("got %v, want %v", id, want)
	}
}

func TestSubscriptionIDFromTopicOrderBook(t *testing.T) {
	id, err := subscriptionIDFromTopic("orderbook.50.BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := model.NewSubscriptionID(channelOrderBookL2, "BTCUSDT"); id != want {
		t.Fatalf("got %v, want %v", id, want)
	}
}

func TestTradePayloadSellSideMapsToSellAggressor(t *testing.T) {
	env := envelope{
		Topic: "publicTrade.BTCUSDT",
		TsMs:  1672304486868,
		Data:  json.RawMessage(`[{"T":1672304486865,"s":"BTCUSDT","S":"Sell","v":"0.001","p":"16578.50","i":"20000000000001"}]`),
	}
	payload, err := parseTradePayload(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kinds := payload.ToDataKinds()
	if len(kinds) != 1 {
		t.Fatalf("expected 1 print, got %d", len(kinds))
	}
	if kinds[0].Aggressor != model.Sell {
		t.Fatalf("expected Sell aggressor, got %v", kinds[0].Aggressor)
	}
	if kinds[0].Price != 16578.50 || kinds[0].Quantity != 0.001 {
		t.Fatalf("unexpected price/quantity: %+v", kinds[0])
	}
}

func TestTradePayloadBuySideMapsToBuyAggressor(t *testing.T) {
	env := envelope{
		Topic: "publicTrade.BTCUSDT",
		TsMs:  1672304486868,
		Data:  json.RawMessage(`[{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.5","p":"16578.50","i":"20000000000002"}]`),
	}
	payload, err := parseTradePayload(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kinds := payload.ToDataKinds()
	if kinds[0].Aggressor != model.Buy {
		t.Fatalf("expected Buy aggressor, got %v", kinds[0].Aggressor)
	}
}

func TestTradePayloadExpandsMultiplePrintsPerFrame(t *testing.T) {
	env := envelope{
		Topic: "publicTrade.BTCUSDT",
		TsMs:  1672304486868,
		Data: json.RawMessage(`[
			{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","i":"1"},
			{"T":1672304486866,"s":"BTCUSDT","S":"Sell","v":"0.002","p":"16579.00","i":"2"}
		]`),
	}
	payload, err := parseTradePayload(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	kinds := payload.ToDataKinds()
	if len(kinds) != 2 {
		t.Fatalf("expected 2 prints, got %d", len(kinds))
	}
	if kinds[0].Aggressor != model.Buy || kinds[1].Aggressor != model.Sell {
		t.Fatalf("unexpected aggressor sequence: %+v", kinds)
	}
}

func TestDepthPayloadParsesLevels(t *testing.T) {
	env := envelope{
		Topic: "orderbook.50.BTCUSDT",
		TsMs:  1672304486868,
		Data:  json.RawMessage(`{"s":"BTCUSDT","u":177400507,"seq":66544703342,"b":[["16493.50","0.006"]],"a":[["16611.00","0.029"]]}`),
	}
	payload, err := parseDepthPayload(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.delta.LastUpdateID != 177400507 {
		t.Fatalf("unexpected LastUpdateID: %d", payload.delta.LastUpdateID)
	}
	bids := toModelLevels(payload.delta.Bids)
	if len(bids) != 1 || bids[0].Price != 16493.50 || bids[0].Amount != 0.006 {
		t.Fatalf("unexpected bids: %+v", bids)
	}
}

func TestSubscriptionResponseSuccess(t *testing.T) {
	resp := subscriptionResponse{Op: "subscribe", Success: true}
	if err := resp.validate(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestSubscriptionResponseFailure(t *testing.T) {
	resp := subscriptionResponse{Op: "subscribe", Success: false}
	if err := resp.validate(); err == nil {
		t.Fatal("expected error for failed subscription")
	}
}

func TestSubscriptionResponsePongIsAlwaysValid(t *testing.T) {
	resp := subscriptionResponse{RetMsg: "pong"}
	if err := resp.validate(); err != nil {
		t.Fatalf("expected pong to validate, got %v", err)
	}
	if !resp.isPong() {
		t.Fatal("expected isPong to be true")
	}
}

func TestSubscriptionResponseUnknownRetMsgIsError(t *testing.T) {
	resp := subscriptionResponse{RetMsg: "something-else"}
	if err := resp.validate(); err == nil {
		t.Fatal("expected error for unrecognised ret_msg")
	}
}
