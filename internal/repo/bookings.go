package repo

import (
	"sync"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

type BookingStore struct {
	mu       sync.RWMutex
	bookings []domain.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{}
}

func (s *BookingStore) Add(b domain.Booking) {
	s.mu.Lock()
	s.bookings = append(s.bookings, b)
	s.mu.Unlock()
}

func (s *BookingStore) Get(id string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Booking{}, notFound("booking", id)
}

// ByJob returns the first booking made for the job.
func (s *BookingStore) ByJob(jobID string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.JobID == jobID {
			return b, nil
		}
	}
	return domain.Booking{}, notFound("booking for job", jobID)
}

func (s *BookingStore) List() []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Booking{}, s.bookings...)
}
