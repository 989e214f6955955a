package model

import "time"

const FillEventType = "FillEvent"

// FillEvent is what an ExecutionClient returns for an OrderEvent: the
// actually-realised quantity, gross value, and fee breakdown.
type FillEvent struct {
	Timestamp       time.Time
	Exchange        ExchangeID
	Instrument      Instrument
	MarketMeta      MarketMeta
	Decision        Decision
	Quantity        float64
	FillValueGross  float64
	Fees            Fees
}
