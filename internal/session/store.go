package session

import (
	"fmt"
	"sync"

	"askpdf/internal/config"
	"askpdf/internal/helper"

	"github.com/rs/zerolog/log"
)

type entry struct {
	mu      sync.Mutex
	session *Session
}

// Store keeps the live sessions of the HTTP API. Each session is used by one
// request at a time.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	cfg      config.RAGConfig
	factory  ProviderFactory
}

func NewStore(cfg config.RAGConfig, factory ProviderFactory) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		factory:  factory,
	}
}

// Create starts a new idle session and returns its id.
func (st *Store) Create() (string, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return "", err
	}
	st.mu.Lock()
	st.sessions[id] = &entry{session: New(st.cfg, st.factory)}
	st.mu.Unlock()

	log.Debug().Str("session", id).Msg("Created session")
	return id, nil
}

// With runs fn while holding the lock of session id.
func (st *Store) With(id string, fn func(s *Session) error) error {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// Delete removes session id and releases its knowledge base.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	e, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	e.session.Reset()
	e.mu.Unlock()
	log.Debug().Str("session", id).Msg("Deleted session")
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
