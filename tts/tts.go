// Package tts defines the speech synthesis interface used by the relay.
//
// Providers consume text fragments as the language model produces them and
// emit encoded audio (MP3) as it becomes available, so that synthesis can be
// pipelined with generation.
package tts

import (
	"bytes"
	"context"
	"strings"
	"unicode"
)

// Synthesizer is the abstraction over a text-to-speech backend.
type Synthesizer interface {
	// SynthesizeStream reads text fragments until text is closed and writes
	// encoded audio chunks to audio. It returns once all audio has been written,
	// or with an error if synthesis fails. It never closes audio.
	SynthesizeStream(ctx context.Context, text <-chan string, audio chan<- []byte) error
}

// Synthesize converts a complete text into a single audio clip.
func Synthesize(ctx context.Context, s Synthesizer, text string) ([]byte, error) {
	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	audioCh := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		defer close(audioCh)
		errCh <- s.SynthesizeStream(ctx, textCh, audioCh)
	}()

	var buf bytes.Buffer
	for chunk := range audioCh {
		buf.Write(chunk)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sentences regroups streamed text fragments into whole sentences. A sentence
// ends at '.', '!', '?' or a newline followed by whitespace. Any text left
// over when in is closed is emitted as a final sentence. out is closed on return.
func Sentences(ctx context.Context, in <-chan string, out chan<- string) {
	defer close(out)
	var sb strings.Builder
	emit := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" {
			return true
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case fragment, ok := <-in:
			if !ok {
				emit(sb.String())
				return
			}
			sb.WriteString(fragment)
			buffered := sb.String()
			end := lastSentenceEnd(buffered)
			if end < 0 {
				continue
			}
			if !emit(buffered[:end]) {
				return
			}
			sb.Reset()
			sb.WriteString(buffered[end:])
		case <-ctx.Done():
			return
		}
	}
}

// lastSentenceEnd returns the index just after the last sentence terminator
// that is followed by whitespace, or -1.
func lastSentenceEnd(s string) int {
	runes := []rune(s)
	end := -1
	offset := 0
	for i, r := range runes {
		offset += len(string(r))
		if !isTerminator(r) || i+1 >= len(runes) {
			continue
		}
		if unicode.IsSpace(runes[i+1]) {
			end = offset
		}
	}
	return end
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
