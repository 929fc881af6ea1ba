// Package voice turns speech from the microphone into message text.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
)

var (
	ErrListening    = errors.New("voice: already listening")
	ErrNotListening = errors.New("voice: not listening")
)

// Recognizer captures speech between Start and Stop.
type Recognizer interface {
	Start(ctx context.Context) error
	// Stop ends the capture and returns the recognized text.
	Stop(ctx context.Context) (text string, err error)
}

var _ Recognizer = (*Whisper)(nil)

type Option func(*Whisper)

// WithRecorder sets the command that records audio. The output filename is
// appended to args, and the command must finish writing the file when it
// receives an interrupt.
func WithRecorder(command string, args ...string) Option {
	return func(w *Whisper) {
		w.command = command
		w.args = args
	}
}

func WithModel(model string) Option {
	return func(w *Whisper) {
		w.model = model
	}
}

// NewWhisper records with arecord by default and transcribes with the OpenAI
// transcription endpoint.
func NewWhisper(log *slog.Logger, client *openai.Client, opts ...Option) *Whisper {
	w := &Whisper{
		log:     log,
		client:  client,
		command: "arecord",
		args:    []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav"},
		model:   openai.Whisper1,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

type Whisper struct {
	log     *slog.Logger
	client  *openai.Client
	command string
	args    []string
	model   string

	mu       sync.Mutex
	cmd      *exec.Cmd
	filename string
}

// Start begins recording. Recording stops if ctx is cancelled.
func (w *Whisper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil {
		return ErrListening
	}
	f, err := os.CreateTemp("", "alex-voice-*.wav")
	if err != nil {
		return fmt.Errorf("voice: failed to create recording file: %w", err)
	}
	f.Close()

	cmd := exec.CommandContext(ctx, w.command, append(append([]string(nil), w.args...), f.Name())...)
	if err = cmd.Start(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("voice: failed to start %s: %w", w.command, err)
	}
	w.log.Debug("recording started", slog.String("file", f.Name()))
	w.cmd = cmd
	w.filename = f.Name()
	return nil
}

func (w *Whisper) Stop(ctx context.Context) (text string, err error) {
	w.mu.Lock()
	cmd, filename := w.cmd, w.filename
	w.cmd, w.filename = nil, ""
	w.mu.Unlock()
	if cmd == nil {
		return "", ErrNotListening
	}
	defer os.Remove(filename)

	if err = cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		w.log.Warn("failed to interrupt recorder", slog.Any("error", err))
		cmd.Process.Kill()
	}
	// Recorders exit with a non-zero status when interrupted.
	var exitErr *exec.ExitError
	if err = cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("voice: recorder failed: %w", err)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("voice: failed to transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
