package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelmaranon/FixNow/internal/domain"
)

// DefaultCapacity is the number of events the feed keeps.
const DefaultCapacity = 50

// Entry is what callers supply to Record; the log fills in the rest.
// A non-empty Message is a scripted line shown in conversation style.
type Entry struct {
	Agent        string
	Action       string
	JobID        string
	Details      map[string]any
	Audience     domain.Audience
	ContractorID string
	Message      string
}

// Query filters List. An empty or "both" audience returns every event.
// A non-empty ContractorID selects that contractor's feed.
type Query struct {
	Limit        int
	Audience     domain.Audience
	ContractorID string
}

// Log is a bounded, append-only feed. The oldest event is evicted once
// capacity is reached.
type Log struct {
	Now   func() time.Time
	NewID func() string

	mu       sync.RWMutex
	buf      []domain.Event
	capacity int
	next     int
	count    int
	seq      uint64
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:      make([]domain.Event, capacity),
		capacity: capacity,
	}
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Log) newID() string {
	if l.NewID != nil {
		return l.NewID()
	}
	return "event-" + uuid.NewString()
}

// Record appends an event built from e and returns it.
func (l *Log) Record(e Entry) domain.Event {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	audience := e.Audience
	if audience == "" {
		audience = domain.AudienceBoth
	}
	evt := domain.Event{
		ID:                l.newID(),
		Timestamp:         l.now(),
		Agent:             e.Agent,
		Action:            e.Action,
		JobID:             e.JobID,
		Details:           details,
		Audience:          audience,
		ContractorID:      e.ContractorID,
		Message:           e.Message,
		ConversationStyle: e.Message != "",
	}
	if evt.Message == "" {
		evt.Message = templateMessage(e.Agent, e.Action, e.JobID)
	}

	l.mu.Lock()
	l.seq++
	evt.Seq = l.seq
	l.buf[l.next] = evt
	l.next = (l.next + 1) % l.capacity
	if l.count < l.capacity {
		l.count++
	}
	l.mu.Unlock()
	return evt
}

func templateMessage(agent, action, jobID string) string {
	if jobID == "" {
		return fmt.Sprintf("%s %s", agent, action)
	}
	return fmt.Sprintf("%s %s for Job #%s", agent, action, jobID)
}

// List returns matching events newest first, capped at q.Limit, and the
// number of retained events that matched before the cap.
func (l *Log) List(q Query) ([]domain.Event, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Event
	matched := 0
	for i := 0; i < l.count; i++ {
		evt := l.buf[(l.next-1-i+l.capacity)%l.capacity]
		if !q.match(evt) {
			continue
		}
		matched++
		if q.Limit <= 0 || len(out) < q.Limit {
			out = append(out, evt)
		}
	}
	if out == nil {
		out = []domain.Event{}
	}
	return out, matched
}

func (q Query) match(evt domain.Event) bool {
	if q.ContractorID != "" {
		if evt.Audience != domain.AudienceContractor && evt.Audience != domain.AudienceBoth {
			return false
		}
		return evt.ContractorID == "" || evt.ContractorID == q.ContractorID
	}
	if q.Audience == "" || q.Audience == domain.AudienceBoth {
		return true
	}
	return evt.Audience == q.Audience || evt.Audience == domain.AudienceBoth
}

// Since returns retained events recorded after seq, oldest first.
func (l *Log) Since(seq uint64, limit int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Event
	for i := l.count - 1; i >= 0; i-- {
		evt := l.buf[(l.next-1-i+l.capacity)%l.capacity]
		if evt.Seq <= seq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LastSeq is the sequence number of the newest event, zero when empty.
func (l *Log) LastSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// Len reports how many events are retained.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
