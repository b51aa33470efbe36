package session

import (
	"context"
	"sync"

	"github.com/nikibot/niki/models"
)

// InMemoryStore keeps session histories in process memory. Sessions
// are isolated; appends within one session are serialized by the
// store lock so ordering is preserved even under concurrent workers.
// No automatic expiry: sessions live until explicitly cleared.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.ConversationTurn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]models.ConversationTurn)}
}

func (s *InMemoryStore) Get(_ context.Context, id string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[id]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, id string, turn models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append(s.sessions[id], turn)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
