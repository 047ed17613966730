package repo

import (
	"sync"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

type OfferStore struct {
	mu     sync.RWMutex
	offers []domain.Offer
	index  map[string]int
}

func NewOfferStore() *OfferStore {
	return &OfferStore{index: make(map[string]int)}
}

func (s *OfferStore) Add(offers ...domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range offers {
		s.index[o.ID] = len(s.offers)
		s.offers = append(s.offers, o)
	}
}

func (s *OfferStore) Get(id string) (domain.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Offer{}, notFound("offer", id)
	}
	return s.offers[i], nil
}

// ByJob returns the job's offers in creation order.
func (s *OfferStore) ByJob(jobID string) []domain.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Offer{}
	for _, o := range s.offers {
		if o.JobID == jobID {
			out = append(out, o)
		}
	}
	return out
}
