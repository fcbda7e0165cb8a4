package feed

import (
	"sync"

	"harvest_monitor/internal/models"
)

// State holds the latest reading. The last Set wins.
type State struct {
	mu      sync.RWMutex
	current models.Reading
	ok      bool
}

func NewState() *State { return &State{} }

func (s *State) Set(r models.Reading) {
	s.mu.Lock()
	s.current = r
	s.ok = true
	s.mu.Unlock()
}

// Current returns the latest reading and whether any has arrived yet.
func (s *State) Current() (models.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.ok
}
