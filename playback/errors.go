package playback

import (
	"errors"
	"fmt"
)

var (
	ErrPlayback = errors.New("playback failed")
	// ErrUnsupportedFormat is returned by Load for clips that are not MP3.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Error is returned when a clip cannot be loaded or played. It matches
// ErrPlayback with errors.Is, as well as the cause.
type Error struct {
	// Op is "load" or "play".
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("playback: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrPlayback, e.Err}
}
