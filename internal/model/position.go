package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PositionID is the repository key for a Position: deterministic from the
// owning engine plus the exchange/instrument it tracks, so a fill always
// resolves to the same Position regardless of which Trader goroutine
// produced it.
type PositionID string

// PositionSide is the net direction held by an open Position.
type PositionSide int

const (
	PositionBuy PositionSide = iota
	PositionSell
)

func (s PositionSide) String() string {
	if s == PositionSell {
		return "Sell"
	}
	return "Buy"
}

// PositionMeta is bookkeeping attached to every Position, independent of
// side or P&L.
type PositionMeta struct {
	EnterTimestamp time.Time
	UpdateTimestamp time.Time
	// ExitBalance is the portfolio Balance snapshot taken at the instant this
	// Position was exited; nil while the Position is open.
	ExitBalance *Balance
}

// Position is a tracked open (or, once moved to the exited set, closed) risk
// in one instrument on one exchange, owned by one engine id.
type Position struct {
	PositionID PositionID
	Meta       PositionMeta
	Exchange   ExchangeID
	Instrument Instrument
	Side       PositionSide
	Quantity   float64

	EnterFees           Fees
	EnterFeesTotal      FeeAmount
	EnterAvgPriceGross  float64
	EnterValueGross     float64

	ExitFees           Fees
	ExitFeesTotal      FeeAmount
	ExitAvgPriceGross  float64
	ExitValueGross     float64

	CurrentSymbolPrice float64
	CurrentValueGross  float64

	UnrealisedProfitLoss float64
	RealisedProfitLoss   float64
}

// DeterminePositionID computes the "{engine_id}_{exchange}_{instrument}_position"
// repository key.
func DeterminePositionID(engineID uuid.UUID, exchange ExchangeID, instrument Instrument) PositionID {
	return PositionID(fmt.Sprintf("%s_%s_%s_position", engineID, exchange, instrument))
}

// CalculateAvgPriceGross derives enter/exit average price, excluding fees,
// from a fill's gross value and signed quantity.
func CalculateAvgPriceGross(fill FillEvent) float64 {
	v := fill.FillValueGross / fill.Quantity
	if v < 0 {
		return -v
	}
	return v
}

// ParseEntrySide determines the Position side a FillEvent should open,
// failing if the fill isn't a coherent entry.
func ParseEntrySide(fill FillEvent) (PositionSide, error) {
	switch {
	case fill.Decision == Long && fill.Quantity > 0:
		return PositionBuy, nil
	case fill.Decision == Short && fill.Quantity < 0:
		return PositionSell, nil
	case fill.Decision == CloseLong || fill.Decision == CloseShort:
		return 0, ErrCannotEnterPositionWithExitFill
	default:
		return 0, ErrParseEntrySide
	}
}

// DetermineExitDecision returns the Decision required to exit this Position.
func (p *Position) DetermineExitDecision() Decision {
	if p.Side == PositionBuy {
		return CloseLong
	}
	return CloseShort
}

// CalculateUnrealisedProfitLoss recomputes unrealised P&L from the
// Position's current mark.
func (p *Position) CalculateUnrealisedProfitLoss() float64 {
	approxTotalFees := p.EnterFeesTotal * 2.0
	if p.Side == PositionBuy {
		return p.CurrentValueGross - p.EnterValueGross - approxTotalFees
	}
	return p.EnterValueGross - p.CurrentValueGross - approxTotalFees
}

// CalculateRealisedProfitLoss computes exact realised P&L once both enter
// and exit fills are known.
func (p *Position) CalculateRealisedProfitLoss() float64 {
	totalFees := p.EnterFeesTotal + p.ExitFeesTotal
	if p.Side == PositionBuy {
		return p.ExitValueGross - p.EnterValueGross - totalFees
	}
	return p.EnterValueGross - p.ExitValueGross - totalFees
}

// CalculateProfitLossReturn is the realised P&L expressed as a return on the
// capital committed to enter the Position.
func (p *Position) CalculateProfitLossReturn() float64 {
	return p.RealisedProfitLoss / p.EnterValueGross
}

// Enter constructs a brand new Position from an entry FillEvent.
func Enter(engineID uuid.UUID, fill FillEvent) (Position, error) {
	side, err := ParseEntrySide(fill)
	if err != nil {
		return Position{}, err
	}

	enterFeesTotal := fill.Fees.Total()
	enterAvgPriceGross := CalculateAvgPriceGross(fill)

	return Position{
		PositionID: DeterminePositionID(engineID, fill.Exchange, fill.Instrument),
		Meta: PositionMeta{
			EnterTimestamp:  fill.MarketMeta.Timestamp,
			UpdateTimestamp: fill.Timestamp,
		},
		Exchange:             fill.Exchange,
		Instrument:            fill.Instrument,
		Side:                  side,
		Quantity:              fill.Quantity,
		EnterFees:             fill.Fees,
		EnterFeesTotal:        enterFeesTotal,
		EnterAvgPriceGross:    enterAvgPriceGross,
		EnterValueGross:       fill.FillValueGross,
		CurrentSymbolPrice:    enterAvgPriceGross,
		CurrentValueGross:     fill.FillValueGross,
		UnrealisedProfitLoss:  -enterFeesTotal * 2.0,
	}, nil
}

// PositionUpdate communicates the diff produced by Update.
type PositionUpdate struct {
	PositionID           PositionID
	UpdateTimestamp      time.Time
	CurrentSymbolPrice   float64
	CurrentValueGross    float64
	UnrealisedProfitLoss float64
}

func newPositionUpdate(p *Position) PositionUpdate {
	return PositionUpdate{
		PositionID:           p.PositionID,
		UpdateTimestamp:      p.Meta.UpdateTimestamp,
		CurrentSymbolPrice:   p.CurrentSymbolPrice,
		CurrentValueGross:    p.CurrentValueGross,
		UnrealisedProfitLoss: p.UnrealisedProfitLoss,
	}
}

// Update applies a MarketEvent to an open Position, returning the diff as a
// PositionUpdate, or false if the event's payload carries no scalar close.
func (p *Position) Update(market MarketEvent[DataKind]) (PositionUpdate, bool) {
	var close float64
	switch payload := market.Payload.(type) {
	case PublicTrade:
		close = payload.Price
	case OrderBookL1:
		close = payload.VolumeWeightedMidPrice()
	case Bar:
		close = payload.Close
	default:
		return PositionUpdate{}, false
	}

	p.Meta.UpdateTimestamp = market.ExchangeTimestamp
	p.CurrentSymbolPrice = close
	absQty := p.Quantity
	if absQty < 0 {
		absQty = -absQty
	}
	p.CurrentValueGross = close * absQty
	p.UnrealisedProfitLoss = p.CalculateUnrealisedProfitLoss()

	return newPositionUpdate(p), true
}

// PositionExit is the terminal snapshot recorded when a Position closes.
type PositionExit struct {
	PositionID         PositionID
	ExitTime           time.Time
	ExitBalance        Balance
	ExitFees           Fees
	ExitFeesTotal      FeeAmount
	ExitAvgPriceGross  float64
	ExitValueGross     float64
	RealisedProfitLoss float64
}

func newPositionExit(p *Position) (PositionExit, error) {
	if p.Meta.ExitBalance == nil {
		return PositionExit{}, ErrPositionExit
	}
	return PositionExit{
		PositionID:         p.PositionID,
		ExitTime:           p.Meta.UpdateTimestamp,
		ExitBalance:        *p.Meta.ExitBalance,
		ExitFees:           p.ExitFees,
		ExitFeesTotal:      p.ExitFeesTotal,
		ExitAvgPriceGross:  p.ExitAvgPriceGross,
		ExitValueGross:     p.ExitValueGross,
		RealisedProfitLoss: p.RealisedProfitLoss,
	}, nil
}

// Exit mutates an open Position into its closed form, given the fill that
// closed it and the Portfolio Balance observed at that instant. The caller is responsible for applying the returned
// Balance mutation and persisting it; Exit only stamps the realised P&L
// into balance.Total before snapshotting it onto the Position.
func (p *Position) Exit(balance Balance, fill FillEvent) (PositionExit, error) {
	if fill.Decision.IsEntry() {
		return PositionExit{}, ErrCannotExitPositionWithEntryFill
	}

	p.ExitFees = fill.Fees
	p.ExitFeesTotal = fill.Fees.Total()
	p.ExitValueGross = fill.FillValueGross
	p.ExitAvgPriceGross = CalculateAvgPriceGross(fill)

	p.RealisedProfitLoss = p.CalculateRealisedProfitLoss()
	p.UnrealisedProfitLoss = p.RealisedProfitLoss

	balance.Total += p.RealisedProfitLoss
	p.Meta.UpdateTimestamp = fill.Timestamp
	p.Meta.ExitBalance = &balance

	return newPositionExit(p)
}
