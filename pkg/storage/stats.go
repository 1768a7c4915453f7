package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/paperstreet/brokerd/pkg/broker"
)

// StatsEntry is the denormalized per-user summary held in the Global
// Stats Index: credentials for login/registration scans, plus liquidity
// and set sizes for directory listings. Always derived from the account
// on save — never the source of truth for liquidity or allocations.
type StatsEntry struct {
	UserID       string          `json:"userId"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"passwordHash"`
	Liquidity    decimal.Decimal `json:"liquidity"`
	Allocations  int             `json:"allocations"`
	WatchList    int             `json:"watchList"`
}

// NewStatsEntry derives the index entry for an account.
func NewStatsEntry(acc *broker.Account) StatsEntry {
	return StatsEntry{
		UserID:       acc.UserID,
		Name:         acc.Name,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		Liquidity:    acc.Liquidity,
		Allocations:  len(acc.Allocations),
		WatchList:    len(acc.WatchList),
	}
}

// GlobalStats returns every index entry, ordered by user id.
func (s *Store) GlobalStats() ([]StatsEntry, error) {
	index, err := s.readStats()
	if err != nil {
		return nil, err
	}
	out := make([]StatsEntry, 0, len(index))
	for _, entry := range index {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// batchRefreshStats stages a full overwrite of the user's index entry.
// The whole index lives under one key, so the read-modify-write here is
// why callers hold s.mu.
func (s *Store) batchRefreshStats(batch *pebble.Batch, acc *broker.Account) error {
	index, err := s.readStats()
	if err != nil {
		return fmt.Errorf("read stats index: %w", err)
	}
	index[acc.UserID] = NewStatsEntry(acc)

	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal stats index: %w", err)
	}
	if err := batch.Set([]byte(statsKey), data, nil); err != nil {
		return fmt.Errorf("set stats index: %w", err)
	}
	return nil
}

func (s *Store) readStats() (map[string]StatsEntry, error) {
	data, closer, err := s.db.Get([]byte(statsKey))
	if err == pebble.ErrNotFound {
		return map[string]StatsEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var index map[string]StatsEntry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	if index == nil {
		index = map[string]StatsEntry{}
	}
	return index, nil
}
