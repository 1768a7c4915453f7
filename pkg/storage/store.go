package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/paperstreet/brokerd/pkg/broker"
)

// Store is the pebble-backed Account Store, Transaction Ledger, Draft
// Ledger, and Global Stats Index. Values are JSON; writes are synced.
//
// Reads always decode fresh from pebble: there is no in-memory account
// cache, so a caller mutating a loaded account changes nothing until it
// saves. Per-user write serialization is the engine's job; the store's
// own mutex only protects the read-modify-write cycles on records
// shared across users (the stats index) or appended out of band (the
// ledgers).
type Store struct {
	mu sync.Mutex
	db *pebble.DB
}

// Open opens (or creates) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(32 << 20), // 32MB
		MemTableSize: 16 << 20,                  // 16MB
		MaxOpenFiles: 500,
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetAccount loads a user's account. A user that was never saved gets a
// fresh zero-value account, not an error.
func (s *Store) GetAccount(userID string) (*broker.Account, error) {
	data, closer, err := s.db.Get(accountKey(userID))
	if err == pebble.ErrNotFound {
		return broker.NewAccount(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}
	defer closer.Close()

	var acc broker.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("unmarshal account %s: %w", userID, err)
	}

	// JSON unmarshal may leave the sets nil
	if acc.Allocations == nil {
		acc.Allocations = []broker.Allocation{}
	}
	if acc.WatchList == nil {
		acc.WatchList = []string{}
	}
	return &acc, nil
}

// SaveAccount overwrites the account record in full and refreshes the
// user's Global Stats Index entry in the same atomic batch.
func (s *Store) SaveAccount(acc *broker.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := s.batchSaveAccount(batch, acc); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("save account %s: %w", acc.UserID, err)
	}
	return nil
}

// CommitTransaction appends txn to the user's transaction ledger,
// overwrites the account record, and refreshes the stats entry as one
// atomic batch. A crash can never leave the ledger and the account out
// of sync.
func (s *Store) CommitTransaction(acc *broker.Account, txn broker.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txns, err := s.readLedger(transactionsKey(acc.UserID))
	if err != nil {
		return fmt.Errorf("read transactions %s: %w", acc.UserID, err)
	}
	txns = append(txns, txn)
	data, err := json.Marshal(txns)
	if err != nil {
		return fmt.Errorf("marshal transactions %s: %w", acc.UserID, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(transactionsKey(acc.UserID), data, nil); err != nil {
		return fmt.Errorf("append transaction %s: %w", acc.UserID, err)
	}
	if err := s.batchSaveAccount(batch, acc); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit transaction %s: %w", acc.UserID, err)
	}
	return nil
}

// batchSaveAccount stages the account overwrite plus its stats entry.
// Assumes s.mu is held (the stats record is shared across users).
func (s *Store) batchSaveAccount(batch *pebble.Batch, acc *broker.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account %s: %w", acc.UserID, err)
	}
	if err := batch.Set(accountKey(acc.UserID), data, nil); err != nil {
		return fmt.Errorf("set account %s: %w", acc.UserID, err)
	}
	return s.batchRefreshStats(batch, acc)
}

// Transactions returns the user's committed orders in append
// (chronological) order. Empty, not an error, when none exist.
func (s *Store) Transactions(userID string) ([]broker.Transaction, error) {
	return s.readLedger(transactionsKey(userID))
}

// Drafts returns the user's drafted orders in append order.
func (s *Store) Drafts(userID string) ([]broker.Transaction, error) {
	return s.readLedger(draftsKey(userID))
}

// AppendDraft appends a drafted order to the user's draft ledger.
func (s *Store) AppendDraft(userID string, draft broker.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts, err := s.readLedger(draftsKey(userID))
	if err != nil {
		return fmt.Errorf("read drafts %s: %w", userID, err)
	}
	drafts = append(drafts, draft)
	data, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("marshal drafts %s: %w", userID, err)
	}
	if err := s.db.Set(draftsKey(userID), data, pebble.Sync); err != nil {
		return fmt.Errorf("append draft %s: %w", userID, err)
	}
	return nil
}

// ClearDrafts empties the user's draft ledger. Idempotent: clearing an
// already empty ledger succeeds.
func (s *Store) ClearDrafts(userID string) error {
	if err := s.db.Delete(draftsKey(userID), pebble.Sync); err != nil {
		return fmt.Errorf("clear drafts %s: %w", userID, err)
	}
	return nil
}

// readLedger decodes the JSON transaction slice under key. Missing key
// means an empty ledger.
func (s *Store) readLedger(key []byte) ([]broker.Transaction, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return []broker.Transaction{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var txns []broker.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []broker.Transaction{}
	}
	return txns, nil
}

var _ broker.Store = (*Store)(nil)
