package models

// Trailers sent after the body of POST /api/ai-stream.
const (
	// TrailerTextLength is the number of bytes of text at the start of the body.
	TrailerTextLength = "X-Text-Length"
	// TrailerRelayStatus is StatusOK when the stream completed, or StatusError.
	TrailerRelayStatus = "X-Relay-Status"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// AudioMarker is the signature the audio segment of a streamed reply starts with.
var AudioMarker = []byte("ID3")

// StreamedReply is the complete body of POST /api/ai-stream.
type StreamedReply struct {
	Body []byte
	// TextLength is the length of the text segment given by the relay, or -1
	// if it was not sent and the body must be split at the AudioMarker.
	TextLength int
}
