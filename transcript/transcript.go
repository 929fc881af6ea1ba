// Package transcript holds the client side conversation state.
package transcript

import (
	"sync"

	"github.com/a-h/alex/models"
)

func New() *State {
	return &State{}
}

// State is the ordered list of turns shown to the user, and whether a reply
// is pending. It is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	turns   []models.ChatTurn
	loading bool
}

func (s *State) AppendTurn(t models.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// ResetAll clears the turns and the loading flag.
func (s *State) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.loading = false
}

// Turns returns a copy of the turns.
func (s *State) Turns() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatTurn(nil), s.turns...)
}

func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
