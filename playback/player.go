package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Player decodes clips for playback.
type Player interface {
	// Load prepares a clip. It returns an error if the clip cannot be played.
	Load(ctx context.Context, clip []byte) (Track, error)
}

// Track is a loaded clip.
type Track interface {
	// Play plays the track from the start, and returns when it has finished
	// or ctx is cancelled.
	Play(ctx context.Context) error
}

func NewExecPlayer(command string, args ...string) ExecPlayer {
	return ExecPlayer{
		Command: command,
		Args:    args,
	}
}

// DefaultExecPlayer plays MP3 from stdin with mpg123.
var DefaultExecPlayer = NewExecPlayer("mpg123", "-q", "-")

// ExecPlayer plays clips by writing them to the stdin of an external command.
type ExecPlayer struct {
	Command string
	Args    []string
}

func (p ExecPlayer) Load(ctx context.Context, clip []byte) (Track, error) {
	if !isMP3(clip) {
		return nil, ErrUnsupportedFormat
	}
	path, err := exec.LookPath(p.Command)
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found: %w", p.Command, err)
	}
	return execTrack{
		path: path,
		args: p.Args,
		clip: clip,
	}, nil
}

type execTrack struct {
	path string
	args []string
	clip []byte
}

func (t execTrack) Play(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.path, t.args...)
	cmd.Stdin = bytes.NewReader(t.clip)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", t.path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// isMP3 checks for an ID3 tag or an MPEG audio frame sync.
func isMP3(clip []byte) bool {
	if len(clip) >= 3 && string(clip[:3]) == "ID3" {
		return true
	}
	return len(clip) >= 2 && clip[0] == 0xff && clip[1]&0xe0 == 0xe0
}
