// Package oms holds the order management policy the Portfolio consults
// between deciding *that* it wants an order and handing it to Execution:
// the Allocator sizes the order, the RiskEvaluator gets the final veto.
package oms

import (
	"math"

	"wednesday-engine/internal/model"
)

// OrderAllocator mutates order.Quantity in place. It must not turn a
// non-zero order into zero — only the RiskEvaluator may veto an order
// outright.
type OrderAllocator interface {
	AllocateOrder(order *model.OrderEvent, position *model.Position, balance model.Balance, strength model.SignalStrength)
}

// DefaultAllocator sizes entries as a fixed notional scaled by signal
// strength, capped so the entry never commits more than the available
// balance, and sizes exits to flatten the open Position exactly.
type DefaultAllocator struct {
	// DefaultOrderValue is the target notional (in quote currency) of an
	// entry order at strength 1.0.
	DefaultOrderValue float64
}

func (a DefaultAllocator) AllocateOrder(order *model.OrderEvent, position *model.Position, balance model.Balance, strength model.SignalStrength) {
	switch order.Decision {
	case model.Long:
		order.Quantity = a.entrySize(order.MarketMeta.Close, balance, strength)
	case model.Short:
		order.Quantity = -a.entrySize(order.MarketMeta.Close, balance, strength)
	case model.CloseLong:
		if position != nil {
			order.Quantity = -math.Abs(position.Quantity)
		}
	case model.CloseShort:
		if position != nil {
			order.Quantity = math.Abs(position.Quantity)
		}
	}
}

func (a DefaultAllocator) entrySize(close float64, balance model.Balance, strength model.SignalStrength) float64 {
	if close <= 0 {
		return 0
	}
	notional := a.DefaultOrderValue * float64(strength)
	if notional > balance.Available {
		notional = balance.Available
	}
	return notional / close
}
