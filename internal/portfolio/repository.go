// Package portfolio is the shared-state core of the engine: balances, open
// and exited positions, per-market statistics, and the policy that decides
// which signals become orders. One MetaPortfolio is shared by the Engine and
// every Trader behind its internal mutex.
package portfolio

import (
	"sync"

	"github.com/google/uuid"

	"wednesday-engine/internal/model"
	"wednesday-engine/internal/statistic"
)

// Repository is the persistence contract for positions, balance and
// statistics. The in-memory implementation below is the reference; the store
// package offers a durable JSON-backed one behind the same contract.
type Repository interface {
	SetOpenPosition(position model.Position) error
	// GetOpenPosition returns nil with no error when no open position exists
	// for the id.
	GetOpenPosition(id model.PositionID) (*model.Position, error)
	// RemovePosition deletes and returns the open position, or nil if absent.
	RemovePosition(id model.PositionID) (*model.Position, error)

	SetExitedPosition(engineID uuid.UUID, position model.Position) error
	GetExitedPositions(engineID uuid.UUID) ([]model.Position, error)

	SetBalance(engineID uuid.UUID, balance model.Balance) error
	GetBalance(engineID uuid.UUID) (model.Balance, error)

	SetStatistics(id model.MarketID, stats statistic.PnLReturnSummary) error
	GetStatistics(id model.MarketID) (statistic.PnLReturnSummary, error)
}

// InMemoryRepository keeps everything in maps. It carries its own mutex so
// it is safe to share even outside the MetaPortfolio's lock (the Engine
// reads exited positions for the session summary while traders may still be
// draining).
type InMemoryRepository struct {
	mu         sync.Mutex
	open       map[model.PositionID]model.Position
	exited     map[uuid.UUID][]model.Position
	balances   map[uuid.UUID]model.Balance
	statistics map[model.MarketID]statistic.PnLReturnSummary
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		open:       make(map[model.PositionID]model.Position),
		exited:     make(map[uuid.UUID][]model.Position),
		balances:   make(map[uuid.UUID]model.Balance),
		statistics: make(map[model.MarketID]statistic.PnLReturnSummary),
	}
}

func (r *InMemoryRepository) SetOpenPosition(position model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[position.PositionID] = position
	return nil
}

func (r *InMemoryRepository) GetOpenPosition(id model.PositionID) (*model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.open[id]
	if !ok {
		return nil, nil
	}
	return &position, nil
}

func (r *InMemoryRepository) RemovePosition(id model.PositionID) (*model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	position, ok := r.open[id]
	if !ok {
		return nil, nil
	}
	delete(r.open, id)
	return &position, nil
}

func (r *InMemoryRepository) SetExitedPosition(engineID uuid.UUID, position model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exited[engineID] = append(r.exited[engineID], position)
	return nil
}

func (r *InMemoryRepository) GetExitedPositions(engineID uuid.UUID) ([]model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	positions := make([]model.Position, len(r.exited[engineID]))
	copy(positions, r.exited[engineID])
	return positions, nil
}

func (r *InMemoryRepository) SetBalance(engineID uuid.UUID, balance model.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[engineID] = balance
	return nil
}

func (r *InMemoryRepository) GetBalance(engineID uuid.UUID) (model.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[engineID], nil
}

func (r *InMemoryRepository) SetStatistics(id model.MarketID, stats statistic.PnLReturnSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statistics[id] = stats
	return nil
}

func (r *InMemoryRepository) GetStatistics(id model.MarketID) (statistic.PnLReturnSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statistics[id], nil
}
