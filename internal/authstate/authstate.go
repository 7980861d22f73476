// Package authstate holds the last-known authentication state for the UI
// layer. It mirrors the per-request context and is never a source of truth.
package authstate

import (
	"sync"

	"stridelog/internal/identity"
	"stridelog/internal/store"
)

// Snapshot is an immutable view of the cached auth state.
type Snapshot struct {
	User            *identity.User `json:"user"`
	Profile         *store.Profile `json:"profile"`
	Loading         bool           `json:"loading"`
	StravaConnected bool           `json:"stravaConnected"`
}

// Store is an observable auth-state holder. Setters replace individual
// fields; subscribers receive the snapshot after every change.
type Store struct {
	mu          sync.RWMutex
	state       Snapshot
	subscribers map[int]chan Snapshot
	nextID      int
}

// NewStore creates a Store in the loading state.
func NewStore() *Store {
	return &Store{
		state:       Snapshot{Loading: true},
		subscribers: make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetUser replaces the user and clears the loading flag.
func (s *Store) SetUser(user *identity.User) {
	s.update(func(state *Snapshot) {
		state.User = user
		state.Loading = false
	})
}

// SetProfile replaces the profile.
func (s *Store) SetProfile(profile *store.Profile) {
	s.update(func(state *Snapshot) {
		state.Profile = profile
	})
}

// SetStravaConnected replaces the connection flag.
func (s *Store) SetStravaConnected(connected bool) {
	s.update(func(state *Snapshot) {
		state.StravaConnected = connected
	})
}

// SetLoading replaces the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(state *Snapshot) {
		state.Loading = loading
	})
}

// Reset returns the store to the anonymous, settled state.
func (s *Store) Reset() {
	s.update(func(state *Snapshot) {
		*state = Snapshot{}
	})
}

// Subscribe registers an observer. The returned channel receives a snapshot
// after each change; slow observers miss intermediate states rather than
// blocking updates. The cancel function unregisters the observer.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Store) update(apply func(*Snapshot)) {
	s.mu.Lock()
	apply(&s.state)
	state := s.state
	subs := make([]chan Snapshot, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- state:
		default:
			// Drop the stale snapshot so the latest one can land.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}
