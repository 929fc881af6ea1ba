package playback

import (
	"log/slog"

	"github.com/a-h/alex/models"
	"github.com/a-h/alex/transcript"
)

func NewSequencer(log *slog.Logger, state *transcript.State, session *Session, format func(string) string) *Sequencer {
	return &Sequencer{
		log:     log,
		state:   state,
		session: session,
		format:  format,
	}
}

// Sequencer adds replies to the transcript and plays their audio.
type Sequencer struct {
	log     *slog.Logger
	state   *transcript.State
	session *Session
	format  func(string) string
}

// HandleReply appends the text of the reply to the transcript as an assistant
// turn and returns it formatted for display. If the reply has audio, playback
// starts after the turn is appended, replacing any clip that is playing. The
// returned handle is nil when there is nothing to play.
func (s *Sequencer) HandleReply(reply models.StreamedReply) (display string, h *Handle) {
	text, audio := SplitReply(reply)
	content := string(text)
	s.state.AppendTurn(models.ChatTurn{
		Role:    models.RoleAssistant,
		Content: content,
	})
	display = content
	if s.format != nil {
		display = s.format(content)
	}
	if len(audio) == 0 {
		return display, nil
	}
	s.log.Debug("starting playback", slog.Int("audioBytes", len(audio)))
	h = s.session.Start(audio, Listeners{
		OnError: func(err error) {
			s.log.Error("failed to play reply", slog.Any("error", err))
		},
	})
	return display, h
}
