package playback

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Listeners are called from the playback goroutine. They must not call
// Session.Start or Handle.Cancel.
type Listeners struct {
	// OnReady is called when the clip has loaded, before it plays.
	OnReady func()
	// OnEnded is called when the clip has played to the end.
	OnEnded func()
	// OnError is called if the clip fails to load or play.
	OnError func(err error)
}

func NewSession(log *slog.Logger, player Player) *Session {
	return &Session{
		log:    log,
		player: player,
	}
}

// Session plays at most one clip at a time.
type Session struct {
	log    *slog.Logger
	player Player

	mu      sync.Mutex
	current *Handle
}

// Start stops the clip that is playing, if any, and plays clip. When Start
// returns, the previous clip has stopped and its listeners will not be
// called again.
func (s *Session) Start(clip []byte, l Listeners) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.stop()
	}

	// The clip is held in memory so that it is fully loaded before playback.
	clip = bytes.Clone(clip)

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cancel:    cancel,
		done:      make(chan struct{}),
		listeners: l,
	}
	s.current = h
	go h.run(ctx, s.log, s.player, clip)
	return h
}

// Stop stops the clip that is playing, if any.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.stop()
		s.current = nil
	}
}

// Handle controls a clip started by a Session.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	mu        sync.Mutex
	listeners Listeners
	detached  bool
}

// Cancel stops playback and waits for it to finish. Listeners are not called
// after Cancel returns.
func (h *Handle) Cancel() {
	h.stop()
}

// Done is closed when playback has finished, failed or been cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns nil if the clip played to the end, context.Canceled if it was
// cancelled, or an *Error. It must only be called after Done is closed.
func (h *Handle) Err() error {
	return h.err
}

func (h *Handle) stop() {
	h.mu.Lock()
	h.detached = true
	h.mu.Unlock()
	h.cancel()
	<-h.done
}

func (h *Handle) notify(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached || f == nil {
		return
	}
	f()
}

func (h *Handle) run(ctx context.Context, log *slog.Logger, player Player, clip []byte) {
	defer close(h.done)
	defer h.cancel()

	fail := func(op string, err error) {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			h.err = context.Canceled
			return
		}
		h.err = &Error{Op: op, Err: err}
		log.Warn("playback abandoned", slog.String("op", op), slog.Any("error", err))
		h.notify(func() {
			if h.listeners.OnError != nil {
				h.listeners.OnError(h.err)
			}
		})
	}

	track, err := player.Load(ctx, clip)
	if err != nil {
		fail("load", err)
		return
	}
	if ctx.Err() != nil {
		h.err = context.Canceled
		return
	}
	h.notify(h.listeners.OnReady)
	if err = track.Play(ctx); err != nil {
		fail("play", err)
		return
	}
	if ctx.Err() != nil {
		h.err = context.Canceled
		return
	}
	h.notify(h.listeners.OnEnded)
}
