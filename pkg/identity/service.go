// Package identity implements login and registration over the Global
// Stats Index. Credential lookups are linear scans by email: fine at
// directory scale, deliberately not indexed.
package identity

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/paperstreet/brokerd/pkg/broker"
	"github.com/paperstreet/brokerd/pkg/storage"
)

type Service struct {
	store *storage.Store
	log   *zap.SugaredLogger
}

func NewService(store *storage.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

// Register creates a new account with zero liquidity and empty sets.
// The email must not already be in the directory. The password is
// bcrypt-hashed; the plaintext is never stored.
func (s *Service) Register(name, email, password string) (storage.StatsEntry, error) {
	entries, err := s.store.GlobalStats()
	if err != nil {
		return storage.StatsEntry{}, fmt.Errorf("read user directory: %w", err)
	}
	for _, entry := range entries {
		if entry.Email == email {
			return storage.StatsEntry{}, broker.NewError(broker.ReasonDuplicateEmail,
				"Email is already in use, try another one.")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.StatsEntry{}, fmt.Errorf("hash password: %w", err)
	}

	acc := broker.NewAccount("user-" + uuid.NewString())
	acc.Name = name
	acc.Email = email
	acc.PasswordHash = string(hash)

	// Saving seeds the stats entry alongside the account record.
	if err := s.store.SaveAccount(acc); err != nil {
		return storage.StatsEntry{}, fmt.Errorf("save account: %w", err)
	}

	s.log.Infow("user_registered", "user", acc.UserID, "email", email)
	return storage.NewStatsEntry(acc), nil
}

// Login matches email and password against the directory.
func (s *Service) Login(email, password string) (storage.StatsEntry, error) {
	entries, err := s.store.GlobalStats()
	if err != nil {
		return storage.StatsEntry{}, fmt.Errorf("read user directory: %w", err)
	}
	for _, entry := range entries {
		if entry.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)) == nil {
			s.log.Infow("user_logged_in", "user", entry.UserID)
			return entry, nil
		}
	}
	return storage.StatsEntry{}, broker.NewError(broker.ReasonInvalidCredentials, "No user found.")
}
