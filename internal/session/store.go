package session

import (
	"errors"
	"sync"
)

// ErrNoSession is returned by a Store that holds no token.
var ErrNoSession = errors.New("no session stored")

// Store persists the session token between accesses.
type Store interface {
	Load() (*Token, error)
	Save(tok *Token) error
	Clear() error
}

// MemoryStore implements Store in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu  sync.RWMutex
	tok *Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tok == nil {
		return nil, ErrNoSession
	}

	return s.tok.clone(), nil
}

func (s *MemoryStore) Save(tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = tok.clone()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tok = nil
	return nil
}
