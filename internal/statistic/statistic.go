// Package statistic summarises the performance of exited Positions. The
// engine keeps one PnLReturnSummary per Market (updated incrementally as
// Positions exit) plus a synthetic "Total" summary regenerated from every
// exited Position at session end.
package statistic

import (
	"math"
	"time"

	"wednesday-engine/internal/model"
)

// PositionSummariser accumulates exited Positions into a running summary.
type PositionSummariser interface {
	Update(position *model.Position)
	GenerateSummary(positions []model.Position)
}

// DataSummary is a running univariate summary over a stream of values,
// using Welford's recurrence for the mean/variance so no sample history is
// retained.
type DataSummary struct {
	Count int
	Sum   float64
	Mean  float64
	// M2 is the running sum of squared deviations from the mean (Welford
	// state); exported so a persisted summary survives a JSON round trip.
	M2  float64
	Min float64
	Max float64
}

// Update folds one value into the summary.
func (s *DataSummary) Update(value float64) {
	s.Count++
	s.Sum += value

	delta := value - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (value - s.Mean)

	if s.Count == 1 {
		s.Min, s.Max = value, value
		return
	}
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
}

// Variance is the population variance of the values seen so far.
func (s *DataSummary) Variance() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.M2 / float64(s.Count)
}

// StdDev is the population standard deviation of the values seen so far.
func (s *DataSummary) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// PnLReturnSummary tracks per-trade P&L returns for one Market (or the
// whole session): every return, plus the losing subset separately so
// win-rate and downside dispersion fall out directly.
type PnLReturnSummary struct {
	StartTime    time.Time
	Duration     time.Duration
	TradesPerDay float64
	Total        DataSummary
	Losses       DataSummary
}

func NewPnLReturnSummary(startTime time.Time) PnLReturnSummary {
	return PnLReturnSummary{StartTime: startTime}
}

const tradingDaysPerYear = 365

// Update folds one exited Position's P&L return into the summary.
func (s *PnLReturnSummary) Update(position *model.Position) {
	s.Duration = position.Meta.UpdateTimestamp.Sub(s.StartTime)

	ret := position.CalculateProfitLossReturn()
	s.Total.Update(ret)
	if ret < 0 {
		s.Losses.Update(ret)
	}

	if days := s.Duration.Hours() / 24; days > 0 {
		s.TradesPerDay = float64(s.Total.Count) / days
	}
}

// GenerateSummary rebuilds the summary from scratch over a full set of
// exited Positions, used for the session-end "Total" row.
func (s *PnLReturnSummary) GenerateSummary(positions []model.Position) {
	for i := range positions {
		s.Update(&positions[i])
	}
}

// WinRate is the fraction of exited Positions with a non-negative return.
func (s *PnLReturnSummary) WinRate() float64 {
	if s.Total.Count == 0 {
		return 0
	}
	return float64(s.Total.Count-s.Losses.Count) / float64(s.Total.Count)
}

// SharpeRatio is the annualised mean return over its dispersion; zero when
// dispersion is zero (fewer than two distinct returns).
func (s *PnLReturnSummary) SharpeRatio() float64 {
	std := s.Total.StdDev()
	if std == 0 {
		return 0
	}
	return s.Total.Mean / std * math.Sqrt(tradingDaysPerYear)
}
