package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/alex/conversation"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/playback"
	"github.com/a-h/alex/transcript"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type recordingRelay struct {
	mu       sync.Mutex
	requests []models.AIStreamPostRequest
}

func (r *recordingRelay) AIStream(ctx context.Context, request models.AIStreamPostRequest, f func(ctx context.Context, chunk []byte) error) (models.StreamedReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, request)
	return models.StreamedReply{Body: []byte("ok"), TextLength: -1}, nil
}

func (r *recordingRelay) Requests() []models.AIStreamPostRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AIStreamPostRequest(nil), r.requests...)
}

type silentPlayer struct{}

func (silentPlayer) Load(ctx context.Context, clip []byte) (playback.Track, error) {
	return silentTrack{}, nil
}

type silentTrack struct{}

func (silentTrack) Play(ctx context.Context) error { return nil }

func newTestModel(t *testing.T) (model, *recordingRelay) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	state := transcript.New()
	session := playback.NewSession(log, silentPlayer{})
	t.Cleanup(session.Stop)
	seq := playback.NewSequencer(log, state, session, nil)
	relay := &recordingRelay{}
	conv := conversation.New(log, relay, state, seq)
	return newModel(context.Background(), log, conv, state), relay
}

// runCmd executes cmd, and any commands it batches, returning the messages.
func runCmd(cmd tea.Cmd) (msgs []tea.Msg) {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			msgs = append(msgs, runCmd(c)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

func replyErrors(msgs []tea.Msg) (errs []error) {
	for _, msg := range msgs {
		if r, ok := msg.(replyMsg); ok {
			errs = append(errs, r.err)
		}
	}
	return errs
}

func TestFormatTurn(t *testing.T) {
	t.Run("code blocks are rendered with the code style", func(t *testing.T) {
		actual := formatTurn(models.ChatTurn{Role: models.RoleAssistant, Content: "Run ```go test``` now"})
		if !strings.Contains(actual, codeStyle.Render("go test")) {
			t.Errorf("expected the code block to be styled, got %q", actual)
		}
		if strings.Contains(actual, "```") {
			t.Errorf("expected the fences to be removed, got %q", actual)
		}
	})
	t.Run("unknown roles are returned as is", func(t *testing.T) {
		content := "You are Alex.\n```x```"
		actual := formatTurn(models.ChatTurn{Role: models.RoleSystem, Content: content})
		if diff := cmp.Diff(content, actual); diff != "" {
			t.Error(diff)
		}
	})
}

func TestCommand(t *testing.T) {
	t.Run("/mute toggles speech without sending", func(t *testing.T) {
		m, relay := newTestModel(t)
		if !m.conversation.Muted() {
			t.Fatal("expected the conversation to start muted")
		}
		runCmd(m.command("/mute"))
		if m.conversation.Muted() {
			t.Error("expected /mute to unmute")
		}
		if len(relay.Requests()) != 0 {
			t.Errorf("expected nothing to be sent, got %d requests", len(relay.Requests()))
		}
	})
	t.Run("/upload sends the file contents", func(t *testing.T) {
		m, relay := newTestModel(t)
		filename := filepath.Join(t.TempDir(), "sales.csv")
		if err := os.WriteFile(filename, []byte("month,total\njan,10\n"), 0o644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		errs := replyErrors(runCmd(m.command("/upload " + filename)))
		if len(errs) != 1 || errs[0] != nil {
			t.Fatalf("expected one successful reply, got %v", errs)
		}
		requests := relay.Requests()
		if len(requests) != 1 {
			t.Fatalf("expected one request, got %d", len(requests))
		}
		messages := requests[0].Messages
		expected := "Read and analyse the following data:\n\n\nmonth\ttotal\njan\t10"
		if diff := cmp.Diff(expected, messages[len(messages)-1].Content); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("/upload of a missing file reports an error", func(t *testing.T) {
		m, relay := newTestModel(t)
		errs := replyErrors(runCmd(m.command("/upload " + filepath.Join(t.TempDir(), "missing.csv"))))
		if len(errs) != 1 || errs[0] == nil {
			t.Errorf("expected an error, got %v", errs)
		}
		if len(relay.Requests()) != 0 {
			t.Error("expected nothing to be sent")
		}
	})
	t.Run("other input is sent as a message", func(t *testing.T) {
		m, relay := newTestModel(t)
		runCmd(m.command("What is a bond?"))
		requests := relay.Requests()
		if len(requests) != 1 {
			t.Fatalf("expected one request, got %d", len(requests))
		}
		expected := []models.ChatTurn{{Role: models.RoleUser, Content: "What is a bond?"}}
		if diff := cmp.Diff(expected, requests[0].Messages); diff != "" {
			t.Error(diff)
		}
		turns := m.state.Turns()
		if len(turns) != 2 || turns[1].Role != models.RoleAssistant {
			t.Errorf("expected the reply in the transcript, got %v", turns)
		}
	})
}
