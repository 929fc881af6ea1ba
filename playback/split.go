// Package playback splits streamed replies into text and audio, and plays
// the audio, one clip at a time.
package playback

import (
	"bytes"

	"github.com/a-h/alex/models"
)

// Split separates a streamed reply at the first audio marker. If there is no
// marker, audio is empty.
func Split(raw []byte) (text, audio []byte) {
	i := bytes.Index(raw, models.AudioMarker)
	if i < 0 {
		return raw, nil
	}
	return raw[:i], raw[i:]
}

// SplitAt separates a streamed reply after n bytes of text. n is clamped to
// the length of raw.
func SplitAt(raw []byte, n int) (text, audio []byte) {
	n = max(0, min(n, len(raw)))
	if n == len(raw) {
		return raw, nil
	}
	return raw[:n], raw[n:]
}

// SplitReply uses the text length sent by the relay if there is one, and
// falls back to locating the audio marker.
func SplitReply(r models.StreamedReply) (text, audio []byte) {
	if r.TextLength >= 0 {
		return SplitAt(r.Body, r.TextLength)
	}
	return Split(r.Body)
}

// Join is the inverse of Split.
func Join(text, audio []byte) []byte {
	joined := make([]byte, 0, len(text)+len(audio))
	joined = append(joined, text...)
	return append(joined, audio...)
}
