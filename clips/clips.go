// Package clips stores synthesized audio clips for a limited time so that they
// can be fetched by URL after a non-streamed completion.
package clips

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Put(ctx context.Context, clip []byte) (id string, err error)
	Get(ctx context.Context, id string) (clip []byte, ok bool, err error)
}

func newID() string {
	return uuid.NewString()
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:   ttl,
		now:   time.Now,
		clips: make(map[string]memoryClip),
	}
}

// Memory is a Store for a single server process.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	clips map[string]memoryClip
}

type memoryClip struct {
	data      []byte
	expiresAt time.Time
}

func (m *Memory) Put(ctx context.Context, clip []byte) (id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, v := range m.clips {
		if now.After(v.expiresAt) {
			delete(m.clips, k)
		}
	}
	id = newID()
	m.clips[id] = memoryClip{
		data:      clip,
		expiresAt: now.Add(m.ttl),
	}
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id string) (clip []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(c.expiresAt) {
		delete(m.clips, id)
		return nil, false, nil
	}
	return c.data, true, nil
}
