package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyconnect/booking-web/internal/confirmation"
	"github.com/skyconnect/booking-web/internal/domain"
)

// view is one open cancellation page: the ticket snapshot taken on entry and
// the confirmation session driven by the customer's actions.
type view struct {
	id        string
	subject   string
	ticket    domain.Ticket
	session   *confirmation.Session
	createdAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (v *view) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *view) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// ViewStore keeps open views in memory, scoped by owner.
type ViewStore struct {
	mu    sync.RWMutex
	views map[string]*view
}

// NewViewStore creates an empty store.
func NewViewStore() *ViewStore {
	return &ViewStore{views: make(map[string]*view)}
}

func (s *ViewStore) create(subject string, ticket domain.Ticket, now time.Time) *view {
	v := &view{
		id:        uuid.NewString(),
		subject:   subject,
		ticket:    ticket,
		session:   confirmation.NewSession(),
		createdAt: now,
		lastSeen:  now,
	}
	s.mu.Lock()
	s.views[v.id] = v
	s.mu.Unlock()
	return v
}

// get returns the view only to the subject that opened it.
func (s *ViewStore) get(id, subject string, now time.Time) (*view, bool) {
	s.mu.RLock()
	v, ok := s.views[id]
	s.mu.RUnlock()
	if !ok || v.subject != subject {
		return nil, false
	}
	v.touch(now)
	return v, true
}

func (s *ViewStore) remove(id, subject string) (*view, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok || v.subject != subject {
		return nil, false
	}
	delete(s.views, id)
	return v, true
}

// expire removes every view idle for longer than ttl and returns them.
func (s *ViewStore) expire(now time.Time, ttl time.Duration) []*view {
	cutoff := now.Add(-ttl)
	var expired []*view

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.views {
		// an action on the wire keeps the view alive
		if v.idleSince().Before(cutoff) && !v.session.Snapshot().InFlight {
			expired = append(expired, v)
			delete(s.views, id)
		}
	}
	return expired
}

// Len returns the number of open views.
func (s *ViewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}
