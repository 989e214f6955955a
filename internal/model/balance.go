package model

import (
	"time"

	"github.com/google/uuid"
)

// Balance tracks portfolio-wide cash: Available must never exceed Total
// except transiently during an in-flight exit fill.
type Balance struct {
	Timestamp time.Time
	Total     float64
	Available float64
}

func NewBalance(timestamp time.Time, total, available float64) Balance {
	return Balance{Timestamp: timestamp, Total: total, Available: available}
}

// BalanceID is the repository key for the single portfolio-wide Balance.
type BalanceID string

func DetermineBalanceID(engineID uuid.UUID) BalanceID {
	return BalanceID(engineID.String() + "_balance")
}
