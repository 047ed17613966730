package repo

import (
	"sort"
	"sync"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

type AvailabilityStore struct {
	mu      sync.RWMutex
	records map[string]domain.Availability
}

func NewAvailabilityStore() *AvailabilityStore {
	return &AvailabilityStore{records: make(map[string]domain.Availability)}
}

// Put replaces any record for the contractor and reports whether one existed.
func (s *AvailabilityStore) Put(a domain.Availability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[a.ContractorID]
	s.records[a.ContractorID] = a
	return existed
}

func (s *AvailabilityStore) Delete(contractorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.records[contractorID]
	delete(s.records, contractorID)
	return existed
}

func (s *AvailabilityStore) Get(contractorID string) (domain.Availability, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[contractorID]
	return a, ok
}

// List returns every record ordered by contractor id.
func (s *AvailabilityStore) List() []domain.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Availability, 0, len(s.records))
	for _, a := range s.records {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractorID < out[j].ContractorID })
	return out
}
