// Package store is a durable portfolio.Repository backed by JSON files,
// for sessions that should survive a restart. Writes use atomic file
// replacement (write to .tmp, then rename) so a crash mid-save never leaves
// a partial file. The in-memory repository remains the reference for
// backtests; this one plugs in behind the identical contract.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"wednesday-engine/internal/model"
	"wednesday-engine/internal/statistic"
)

// Store persists positions, balances and statistics as JSON files in a
// designated directory. All operations are mutex-protected to prevent
// concurrent file corruption.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp, path)
}

// readJSON decodes one file into v; found=false when the file is absent.
func (s *Store) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return true, nil
}

// Position ids embed the exchange and instrument, which is already
// filesystem-safe (lowercase words joined by underscores).
func openPositionFile(id model.PositionID) string {
	return "pos_" + string(id) + ".json"
}

func (s *Store) SetOpenPosition(position model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(openPositionFile(position.PositionID), position)
}

func (s *Store) GetOpenPosition(id model.PositionID) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var position model.Position
	found, err := s.readJSON(openPositionFile(id), &position)
	if err != nil || !found {
		return nil, err
	}
	return &position, nil
}

func (s *Store) RemovePosition(id model.PositionID) (*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var position model.Position
	found, err := s.readJSON(openPositionFile(id), &position)
	if err != nil || !found {
		return nil, err
	}
	if err := os.Remove(filepath.Join(s.dir, openPositionFile(id))); err != nil {
		return nil, fmt.Errorf("remove position: %w", err)
	}
	return &position, nil
}

func (s *Store) SetExitedPosition(engineID uuid.UUID, position model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := "exited_" + engineID.String() + ".json"
	var exited []model.Position
	if _, err := s.readJSON(name, &exited); err != nil {
		return err
	}
	exited = append(exited, position)
	return s.writeJSON(name, exited)
}

func (s *Store) GetExitedPositions(engineID uuid.UUID) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exited []model.Position
	if _, err := s.readJSON("exited_"+engineID.String()+".json", &exited); err != nil {
		return nil, err
	}
	return exited, nil
}

func (s *Store) SetBalance(engineID uuid.UUID, balance model.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON("balance_"+engineID.String()+".json", balance)
}

func (s *Store) GetBalance(engineID uuid.UUID) (model.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var balance model.Balance
	if _, err := s.readJSON("balance_"+engineID.String()+".json", &balance); err != nil {
		return model.Balance{}, err
	}
	return balance, nil
}

func (s *Store) SetStatistics(id model.MarketID, stats statistic.PnLReturnSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON("stats_"+string(id)+".json", stats)
}

func (s *Store) GetStatistics(id model.MarketID) (statistic.PnLReturnSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats statistic.PnLReturnSummary
	if _, err := s.readJSON("stats_"+string(id)+".json", &stats); err != nil {
		return statistic.PnLReturnSummary{}, err
	}
	return stats, nil
}
