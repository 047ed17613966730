package repo

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rafaelmaranon/FixNow/internal/domain"
	"github.com/rafaelmaranon/FixNow/internal/geo"
)

type JobStore struct {
	mu    sync.RWMutex
	jobs  []domain.Job
	index map[string]int
}

func NewJobStore() *JobStore {
	return &JobStore{index: make(map[string]int)}
}

// Create reserves the next sequential id and stores the job build returns.
// Ids already taken by imported jobs are skipped.
func (s *JobStore) Create(build func(id string) (domain.Job, error)) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.jobs) + 1
	for {
		if _, taken := s.index[strconv.Itoa(n)]; !taken {
			break
		}
		n++
	}
	job, err := build(strconv.Itoa(n))
	if err != nil {
		return domain.Job{}, err
	}
	s.insertLocked(job)
	return job, nil
}

// Import stores prebuilt jobs, such as seed data.
func (s *JobStore) Import(jobs ...domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		if j.ID == "" {
			return fmt.Errorf("import job: id required")
		}
		if _, ok := s.index[j.ID]; ok {
			return fmt.Errorf("import job %s: duplicate id", j.ID)
		}
		if j.Status == "" {
			j.Status = domain.JobOpen
		}
		s.insertLocked(j)
	}
	return nil
}

func (s *JobStore) insertLocked(j domain.Job) {
	s.index[j.ID] = len(s.jobs)
	s.jobs = append(s.jobs, j)
}

func (s *JobStore) Get(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Job{}, notFound("job", id)
	}
	return s.jobs[i], nil
}

// List returns every job in insertion order.
func (s *JobStore) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Job{}, s.jobs...)
}

func (s *JobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Hold marks the job held until the given time.
func (s *JobStore) Hold(id string, until time.Time) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Job{}, notFound("job", id)
	}
	job := s.jobs[i]
	if !job.CanTransition(domain.JobHeld) {
		return domain.Job{}, &domain.ConflictError{Entity: "job", ID: id, Reason: fmt.Sprintf("cannot hold a %s job", job.Status)}
	}
	job.Status = domain.JobHeld
	job.HoldUntil = &until
	s.jobs[i] = job
	return job, nil
}

// Assignment is the outcome of an accepted offer.
type Assignment struct {
	ContractorName string
	Price          float64
	At             time.Time
	BookingID      string
}

// Assign moves the job to assigned. It fails with a ConflictError when
// the job is already assigned, so at most one booking wins per job.
func (s *JobStore) Assign(id string, a Assignment) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Job{}, notFound("job", id)
	}
	job := s.jobs[i]
	if !job.CanTransition(domain.JobAssigned) {
		return domain.Job{}, &domain.ConflictError{Entity: "job", ID: id, Reason: "already assigned to " + job.AssignedContractor}
	}
	price := a.Price
	at := a.At
	job.Status = domain.JobAssigned
	job.AssignedContractor = a.ContractorName
	job.FinalPrice = &price
	job.AssignedAt = &at
	job.BookingID = a.BookingID
	s.jobs[i] = job
	return job, nil
}

// HealCoordinates re-synthesizes coordinates for jobs outside the demo
// area and returns the ids it fixed. Running it twice changes nothing.
func (s *JobStore) HealCoordinates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fixed []string
	for i, j := range s.jobs {
		if geo.InBounds(j.Lat, j.Lng) {
			continue
		}
		p := geo.Synthesize(j.Address)
		s.jobs[i].Lat = p.Lat
		s.jobs[i].Lng = p.Lng
		fixed = append(fixed, j.ID)
	}
	return fixed
}
