// Package relay forwards a conversation to the completion provider and
// returns the reply, optionally followed by synthesized speech.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/a-h/alex/clips"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/observe"
	"github.com/a-h/alex/persona"
	"github.com/a-h/alex/tts"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"
)

type Option func(*Relay)

func WithSynthesizer(s tts.Synthesizer) Option {
	return func(r *Relay) {
		r.synth = s
	}
}

// WithClipStore enables audio for non-streamed completions. The clip is
// stored and referenced by URL in the completion.
func WithClipStore(s clips.Store, urlPrefix string) Option {
	return func(r *Relay) {
		r.clips = s
		r.clipURLPrefix = urlPrefix
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(log *slog.Logger, llm llms.Model, p persona.Persona, opts ...Option) *Relay {
	r := &Relay{
		log:     log,
		llm:     llm,
		persona: p,
		metrics: observe.Discard(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type Relay struct {
	log           *slog.Logger
	llm           llms.Model
	synth         tts.Synthesizer
	clips         clips.Store
	clipURLPrefix string
	persona       persona.Persona
	metrics       *observe.Metrics
}

// CanSpeak reports whether a synthesizer is configured.
func (r *Relay) CanSpeak() bool {
	return r.synth != nil
}

// Validate checks that turns can be relayed.
func Validate(turns []models.ChatTurn) error {
	if len(turns) == 0 {
		return ErrNoTurns
	}
	for i, t := range turns {
		if _, ok := roleToMessageType[t.Role]; !ok {
			return fmt.Errorf("%w %q in turn %d", ErrUnknownRole, t.Role, i)
		}
	}
	return nil
}

var roleToMessageType = map[models.Role]llms.ChatMessageType{
	models.RoleSystem:    llms.ChatMessageTypeSystem,
	models.RoleUser:      llms.ChatMessageTypeHuman,
	models.RoleAssistant: llms.ChatMessageTypeAI,
}

// messages returns the payload sent to the model: the persona's system
// prompt followed by the turns. The caller's slice is not modified.
func (r *Relay) messages(turns []models.ChatTurn) (msgs []llms.MessageContent, err error) {
	if err = Validate(turns); err != nil {
		return nil, err
	}
	msgs = make([]llms.MessageContent, 0, len(turns)+1)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, r.persona.SystemPrompt))
	for _, t := range turns {
		msgs = append(msgs, llms.TextParts(roleToMessageType[t.Role], t.Content))
	}
	return msgs, nil
}

type StreamResult struct {
	// Text is the generated reply.
	Text string
	// TextLength is the number of bytes of text written before any audio.
	TextLength int
	// AudioLength is the number of bytes of audio written after the text.
	AudioLength int64
}

// Stream writes the reply text to w as it is generated. When wantsAudio is
// set and a synthesizer is configured, the text is also synthesized while it
// is being generated, and the audio is written to w once the text is
// complete. The audio always starts with models.AudioMarker.
func (r *Relay) Stream(ctx context.Context, turns []models.ChatTurn, wantsAudio bool, w io.Writer) (res StreamResult, err error) {
	msgs, err := r.messages(turns)
	if err != nil {
		return res, err
	}
	if wantsAudio && r.synth == nil {
		r.log.Warn("audio requested but no synthesizer is configured, sending text only")
		wantsAudio = false
	}
	if !wantsAudio {
		defer r.metrics.RecordRelay(ctx, "text", time.Now())
		return r.streamText(ctx, msgs, w)
	}
	defer r.metrics.RecordRelay(ctx, "audio", time.Now())
	return r.streamTextAndAudio(ctx, msgs, w)
}

func (r *Relay) streamText(ctx context.Context, msgs []llms.MessageContent, w io.Writer) (res StreamResult, err error) {
	var sb strings.Builder
	f := func(ctx context.Context, chunk []byte) error {
		n, err := w.Write(chunk)
		res.TextLength += n
		sb.Write(chunk[:n])
		return err
	}
	_, err = r.llm.GenerateContent(ctx, msgs, llms.WithTemperature(r.persona.Temperature), llms.WithStreamingFunc(f))
	r.metrics.RecordProvider(ctx, "llm", err)
	res.Text = sb.String()
	if err != nil {
		return res, newError("completion", err)
	}
	r.checkMarker(res.Text)
	return res, nil
}

func (r *Relay) streamTextAndAudio(ctx context.Context, msgs []llms.MessageContent, w io.Writer) (res StreamResult, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	text := make(chan string, 64)
	audio := make(chan []byte, 64)
	textDone := make(chan struct{})
	var textErr error

	g.Go(func() error {
		defer close(audio)
		err := r.synth.SynthesizeStream(gctx, text, audio)
		r.metrics.RecordProvider(gctx, "tts", err)
		if err != nil {
			return newError("synthesis", err)
		}
		return nil
	})
	g.Go(func() error {
		defer close(textDone)
		defer close(text)
		var sb strings.Builder
		f := func(ctx context.Context, chunk []byte) error {
			n, err := w.Write(chunk)
			res.TextLength += n
			sb.Write(chunk[:n])
			if err != nil {
				return err
			}
			select {
			case text <- string(chunk):
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		_, err := r.llm.GenerateContent(gctx, msgs, llms.WithTemperature(r.persona.Temperature), llms.WithStreamingFunc(f))
		r.metrics.RecordProvider(gctx, "llm", err)
		res.Text = sb.String()
		if err != nil {
			textErr = newError("completion", err)
			return textErr
		}
		return nil
	})

	// Audio is held back until the text is complete so that the text segment
	// always comes first.
	aw := &audioWriter{w: w}
	var pending [][]byte
	var writeErr error
	textDoneCh, audioCh := textDone, audio
	for textDoneCh != nil || audioCh != nil {
		select {
		case <-textDoneCh:
			textDoneCh = nil
			if textErr != nil {
				pending = nil
				continue
			}
			for _, chunk := range pending {
				if writeErr = writeChunk(aw, chunk, writeErr, cancel); writeErr != nil {
					break
				}
			}
			pending = nil
		case chunk, ok := <-audioCh:
			if !ok {
				audioCh = nil
				continue
			}
			if textDoneCh != nil {
				pending = append(pending, chunk)
				continue
			}
			if textErr == nil {
				writeErr = writeChunk(aw, chunk, writeErr, cancel)
			}
		}
	}
	waitErr := g.Wait()
	if writeErr == nil && waitErr == nil {
		writeErr = aw.Close()
	}
	res.AudioLength = aw.n
	r.metrics.AudioBytes.Add(ctx, aw.n)
	if writeErr != nil {
		return res, fmt.Errorf("relay: failed to write audio: %w", writeErr)
	}
	if waitErr != nil {
		return res, waitErr
	}
	r.checkMarker(res.Text)
	return res, nil
}

// writeChunk writes audio unless a previous write failed. The first failure
// cancels the providers, since nobody is left to receive the reply.
func writeChunk(w io.Writer, chunk []byte, prev error, cancel context.CancelFunc) error {
	if prev != nil {
		return prev
	}
	if _, err := w.Write(chunk); err != nil {
		cancel()
		return err
	}
	return nil
}

func (r *Relay) checkMarker(text string) {
	if strings.Contains(text, string(models.AudioMarker)) {
		r.log.Warn("reply text contains the audio marker, clients must use the text length trailer to split the reply")
	}
}

type Completion struct {
	Content      string
	FinishReason string
	Index        int
	// AudioURL locates the synthesized reply, if a clip store is configured.
	AudioURL string
}

// Complete returns the whole reply at once.
func (r *Relay) Complete(ctx context.Context, turns []models.ChatTurn) (c Completion, err error) {
	msgs, err := r.messages(turns)
	if err != nil {
		return c, err
	}
	resp, err := r.llm.GenerateContent(ctx, msgs, llms.WithTemperature(r.persona.Temperature))
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = errEmptyResponse
	}
	r.metrics.RecordProvider(ctx, "llm", err)
	if err != nil {
		return c, newError("completion", err)
	}
	choice := resp.Choices[0]
	c = Completion{
		Content:      choice.Content,
		FinishReason: choice.StopReason,
	}
	if r.synth == nil || r.clips == nil {
		return c, nil
	}
	clip, err := tts.Synthesize(ctx, r.synth, c.Content)
	r.metrics.RecordProvider(ctx, "tts", err)
	if err != nil {
		return c, newError("synthesis", err)
	}
	id, err := r.clips.Put(ctx, clip)
	if err != nil {
		return c, fmt.Errorf("relay: failed to store clip: %w", err)
	}
	c.AudioURL = r.clipURLPrefix + id
	return c, nil
}

// Speak synthesizes text and writes the audio to w as it is produced.
func (r *Relay) Speak(ctx context.Context, text string, w io.Writer) (n int64, err error) {
	if r.synth == nil {
		return 0, ErrNoSynthesizer
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)
	audio := make(chan []byte, 64)
	synthErr := make(chan error, 1)
	go func() {
		defer close(audio)
		synthErr <- r.synth.SynthesizeStream(ctx, textCh, audio)
	}()

	var writeErr error
	for chunk := range audio {
		if writeErr != nil {
			continue
		}
		var written int
		written, writeErr = w.Write(chunk)
		n += int64(written)
		if writeErr != nil {
			cancel()
		}
	}
	err = <-synthErr
	r.metrics.RecordProvider(ctx, "tts", err)
	if writeErr != nil {
		return n, fmt.Errorf("relay: failed to write audio: %w", writeErr)
	}
	if err != nil {
		return n, newError("synthesis", err)
	}
	r.metrics.AudioBytes.Add(ctx, n)
	return n, nil
}
