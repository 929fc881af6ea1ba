// Package mock provides a test double for tts.Synthesizer.
package mock

import (
	"context"
	"sync"
)

// Synthesizer records the text it receives and emits Chunks once the text
// channel is closed. If Err is set it is returned after the text is drained.
type Synthesizer struct {
	Chunks [][]byte
	Err    error

	mu   sync.Mutex
	text []string
}

func (s *Synthesizer) SynthesizeStream(ctx context.Context, text <-chan string, audio chan<- []byte) error {
	for fragment := range text {
		s.mu.Lock()
		s.text = append(s.text, fragment)
		s.mu.Unlock()
	}
	if s.Err != nil {
		return s.Err
	}
	for _, chunk := range s.Chunks {
		select {
		case audio <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Text returns the fragments received so far.
func (s *Synthesizer) Text() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.text...)
}
