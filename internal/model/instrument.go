// Package model holds the exchange-agnostic data types shared by every
// subsystem: instruments, markets, events, signals, orders, fills, positions
// and balances. Nothing in this package talks to a network or a disk.
package model

import (
	"fmt"
	"strings"
)

// InstrumentKind closes over the instrument kinds this engine understands.
type InstrumentKind int

const (
	Spot InstrumentKind = iota
	Perpetual
	Future
	Stock
)

func (k InstrumentKind) String() string {
	switch k {
	case Spot:
		return "spot"
	case Perpetual:
		return "perpetual"
	case Future:
		return "future"
	case Stock:
		return "stock"
	default:
		return "unknown"
	}
}

// Instrument identifies a tradable pair on a venue-agnostic basis. Symbols
// are always case-normalised to lowercase so that Instrument{} values compare
// and hash consistently regardless of how an exchange spells them on the wire.
type Instrument struct {
	Base   string
	Quote  string
	Kind   InstrumentKind
	Expiry string // non-empty only when Kind == Future
}

// NewInstrument normalises base/quote to lowercase before constructing.
func NewInstrument(base, quote string, kind InstrumentKind) Instrument {
	return Instrument{Base: strings.ToLower(base), Quote: strings.ToLower(quote), Kind: kind}
}

// NewFuture constructs a dated future instrument.
func NewFuture(base, quote, expiry string) Instrument {
	return Instrument{Base: strings.ToLower(base), Quote: strings.ToLower(quote), Kind: Future, Expiry: expiry}
}

func (i Instrument) String() string {
	if i.Kind == Future && i.Expiry != "" {
		return fmt.Sprintf("%s_%s_%s_%s", i.Base, i.Quote, i.Kind, i.Expiry)
	}
	return fmt.Sprintf("%s_%s_%s", i.Base, i.Quote, i.Kind)
}

// Less gives Instrument a structural total order, used when Subscription
// batches are sorted in the stream builder.
func (i Instrument) Less(other Instrument) bool {
	if i.Base != other.Base {
		return i.Base < other.Base
	}
	if i.Quote != other.Quote {
		return i.Quote < other.Quote
	}
	if i.Kind != other.Kind {
		return i.Kind < other.Kind
	}
	return i.Expiry < other.Expiry
}
