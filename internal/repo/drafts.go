package repo

import (
	"sync"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

type DraftStore struct {
	mu     sync.RWMutex
	drafts map[string]domain.Draft
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string]domain.Draft)}
}

func (s *DraftStore) Put(d domain.Draft) {
	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()
}

func (s *DraftStore) Get(id string) (domain.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	if !ok {
		return domain.Draft{}, notFound("draft", id)
	}
	return d, nil
}

// Update applies fn to a copy of the draft and stores it if fn succeeds.
func (s *DraftStore) Update(id string, fn func(*domain.Draft) error) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return domain.Draft{}, notFound("draft", id)
	}
	if err := fn(&d); err != nil {
		return domain.Draft{}, err
	}
	s.drafts[id] = d
	return d, nil
}

// Take removes the draft and returns it.
func (s *DraftStore) Take(id string) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return domain.Draft{}, notFound("draft", id)
	}
	delete(s.drafts, id)
	return d, nil
}
