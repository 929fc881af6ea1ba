// Package conversation connects user input to the relay, the transcript and
// playback.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/a-h/alex/models"
	"github.com/a-h/alex/playback"
	"github.com/a-h/alex/sheet"
	"github.com/a-h/alex/transcript"
	"github.com/a-h/alex/voice"
)

var ErrNoRecognizer = errors.New("conversation: speech recognition is not available")

// Greeting is sent when the conversation opens, so the assistant introduces
// itself. It is not shown in the transcript.
const Greeting = "hello there"

type Relay interface {
	AIStream(ctx context.Context, request models.AIStreamPostRequest, f func(ctx context.Context, chunk []byte) error) (models.StreamedReply, error)
}

type Option func(*Conversation)

func WithRecognizer(r voice.Recognizer) Option {
	return func(c *Conversation) {
		c.recognizer = r
	}
}

// WithMuted sets whether replies are spoken. Conversations start muted.
func WithMuted(muted bool) Option {
	return func(c *Conversation) {
		c.muted = muted
	}
}

func New(log *slog.Logger, relay Relay, state *transcript.State, sequencer *playback.Sequencer, opts ...Option) *Conversation {
	c := &Conversation{
		log:       log,
		relay:     relay,
		state:     state,
		sequencer: sequencer,
		muted:     true,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Conversation struct {
	log        *slog.Logger
	relay      Relay
	state      *transcript.State
	sequencer  *playback.Sequencer
	recognizer voice.Recognizer

	mu        sync.Mutex
	muted     bool
	listening bool
}

// Send adds the message to the transcript and relays the conversation. It
// returns the reply formatted for display. Blank messages are ignored.
//
// If the relay fails, the error is returned and no reply is added.
func (c *Conversation) Send(ctx context.Context, message string) (display string, err error) {
	if strings.TrimSpace(message) == "" {
		return "", nil
	}
	c.state.SetLoading(true)
	defer c.state.SetLoading(false)

	c.state.AppendTurn(models.ChatTurn{Role: models.RoleUser, Content: message})
	return c.relayTurns(ctx, c.state.Turns(), c.Muted())
}

// Greet asks the assistant to introduce itself. The reply is never spoken.
func (c *Conversation) Greet(ctx context.Context) (display string, err error) {
	c.state.SetLoading(true)
	defer c.state.SetLoading(false)
	return c.relayTurns(ctx, []models.ChatTurn{{Role: models.RoleUser, Content: Greeting}}, true)
}

func (c *Conversation) relayTurns(ctx context.Context, turns []models.ChatTurn, muted bool) (display string, err error) {
	reply, err := c.relay.AIStream(ctx, models.AIStreamPostRequest{Messages: turns, Muted: muted}, nil)
	if err != nil {
		c.log.Error("failed to relay message", slog.Any("error", err))
		return "", err
	}
	display, _ = c.sequencer.HandleReply(reply)
	return display, nil
}

// SendSheet sends the contents of a .csv or .xlsx file for analysis.
func (c *Conversation) SendSheet(ctx context.Context, filename string, r io.Reader) (display string, err error) {
	text, err := sheet.Parse(filename, r)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, sheet.Prompt(text))
}

// ToggleMute switches spoken replies on or off and returns the new setting.
func (c *Conversation) ToggleMute() (muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	return c.muted
}

func (c *Conversation) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Conversation) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Listen starts speech recognition, or if it is already listening, stops it
// and sends what was heard.
func (c *Conversation) Listen(ctx context.Context) (display string, err error) {
	if c.recognizer == nil {
		return "", ErrNoRecognizer
	}
	c.mu.Lock()
	listening := c.listening
	c.listening = !listening
	c.mu.Unlock()

	if !listening {
		if err = c.recognizer.Start(ctx); err != nil {
			c.setListening(false)
			return "", fmt.Errorf("conversation: failed to start listening: %w", err)
		}
		return "", nil
	}
	text, err := c.recognizer.Stop(ctx)
	if err != nil {
		return "", fmt.Errorf("conversation: failed to recognize speech: %w", err)
	}
	return c.Send(ctx, text)
}

func (c *Conversation) setListening(listening bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = listening
}
