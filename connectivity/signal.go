// Package connectivity tracks whether the remote snapshot store is reachable.
package connectivity

import (
	"sync"

	"github.com/google/uuid"
)

// Signal is a boolean online state with transition notifications.
type Signal struct {
	mu        sync.Mutex
	online    bool
	listeners map[uuid.UUID]func(online bool)
}

func NewSignal(online bool) *Signal {
	return &Signal{online: online, listeners: make(map[uuid.UUID]func(bool))}
}

func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set updates the state. Listeners run synchronously, and only on a transition.
func (s *Signal) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	listeners := make([]func(bool), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(online)
	}
}

// Subscribe registers fn for transitions and returns a function that removes it.
func (s *Signal) Subscribe(fn func(online bool)) func() {
	id := uuid.New()
	s.mu.Lock()
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
