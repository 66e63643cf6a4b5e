package chat

import (
	"sort"
	"sync"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// Store caches the conversation summaries reported by the agent service,
// ordered by last activity, newest first. It never fetches on its own; the
// chat client and the surrounding session handling refresh it.
type Store struct {
	mu    sync.RWMutex
	convs []models.Conversation
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll swaps the cached summaries for the given list. Duplicate
// identifiers are dropped, keeping the first occurrence.
func (s *Store) ReplaceAll(convs []models.Conversation) {
	seen := make(map[string]struct{}, len(convs))
	deduped := make([]models.Conversation, 0, len(convs))
	for _, conv := range convs {
		if _, ok := seen[conv.ID]; ok {
			continue
		}
		seen[conv.ID] = struct{}{}
		deduped = append(deduped, conv)
	}
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].LastMessageAt > deduped[j].LastMessageAt
	})

	s.mu.Lock()
	s.convs = deduped
	s.mu.Unlock()
}

// All returns a copy of the cached summaries in display order.
func (s *Store) All() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make([]models.Conversation, len(s.convs))
	copy(convs, s.convs)
	return convs
}

// FindByID returns the summary with the given identifier.
func (s *Store) FindByID(id string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conv := range s.convs {
		if conv.ID == id {
			return conv, true
		}
	}
	return models.Conversation{}, false
}

// UpsertTitle sets the title of the conversation with the given identifier.
// It is a no-op when the identifier is absent.
func (s *Store) UpsertTitle(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if s.convs[i].ID == id {
			s.convs[i].Title = title
			return
		}
	}
}

// RemoveByID drops the summary with the given identifier, if present.
func (s *Store) RemoveByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if s.convs[i].ID == id {
			s.convs = append(s.convs[:i], s.convs[i+1:]...)
			return
		}
	}
}
