// Package memstore is an in-memory authcore.IdentityStore for development servers, examples
// and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/store"
)

// Store keeps identities in maps guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]authcore.IdentityRecord
	byEmail map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]authcore.IdentityRecord),
		byEmail: make(map[string]string),
	}
}

// Create stores a new identity under a random UUID.
func (s *Store) Create(_ context.Context, in store.NewIdentity) (authcore.IdentityRecord, error) {
	email := store.NormalizeEmail(in.Email)
	if email == "" || !in.Role.Valid() {
		return authcore.IdentityRecord{}, authcore.ErrMalformedInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return authcore.IdentityRecord{}, store.ErrEmailTaken
	}

	rec := authcore.IdentityRecord{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
	}
	s.byID[rec.ID] = rec
	s.byEmail[email] = rec.ID
	return rec, nil
}

// Put inserts or replaces rec as given. The email index follows the record.
func (s *Store) Put(rec authcore.IdentityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[rec.ID]; ok {
		delete(s.byEmail, store.NormalizeEmail(old.Email))
	}
	s.byID[rec.ID] = rec
	s.byEmail[store.NormalizeEmail(rec.Email)] = rec.ID
}

func (s *Store) FindByEmail(_ context.Context, email string) (authcore.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[store.NormalizeEmail(email)]
	if !ok {
		return authcore.IdentityRecord{}, authcore.ErrIdentityNotFound
	}
	return s.byID[id], nil
}

func (s *Store) FindByID(_ context.Context, id string) (authcore.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return authcore.IdentityRecord{}, authcore.ErrIdentityNotFound
	}
	return rec, nil
}

// EnableSecondFactor sets the secret and the enabled flag under one lock.
func (s *Store) EnableSecondFactor(_ context.Context, id, secret string) error {
	if secret == "" {
		return authcore.ErrMalformedInput
	}
	return s.update(id, func(rec *authcore.IdentityRecord) {
		rec.TwoFactorSecret = secret
		rec.TwoFactorEnabled = true
	})
}

func (s *Store) DisableSecondFactor(_ context.Context, id string) error {
	return s.update(id, func(rec *authcore.IdentityRecord) {
		rec.TwoFactorSecret = ""
		rec.TwoFactorEnabled = false
	})
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(rec *authcore.IdentityRecord) {
		rec.PasswordHash = hash
	})
}

func (s *Store) update(id string, mutate func(*authcore.IdentityRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return authcore.ErrIdentityNotFound
	}
	mutate(&rec)
	s.byID[id] = rec
	return nil
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var (
	_ authcore.IdentityStore    = (*Store)(nil)
	_ authcore.PasswordRehasher = (*Store)(nil)
)
