package models

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is a single entry of a conversation. Turns are never modified once
// created, and their order is the order they are sent to the model.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AIStreamPostRequest is the body of POST /api/ai-stream.
type AIStreamPostRequest struct {
	Messages []ChatTurn `json:"messages"`

	// Muted disables speech synthesis, so the response body only contains text.
	Muted bool `json:"muted"`
}

// AIPostRequest is the body of POST /api/ai.
type AIPostRequest struct {
	Messages []ChatTurn `json:"messages"`
}

type AIPostResponse struct {
	Role         Role   `json:"role"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Index        int    `json:"index"`
	AudioURL     string `json:"audioUrl,omitempty"`
}

// SpeechPostRequest is the body of POST /api/voice-to-speech.
type SpeechPostRequest struct {
	Text string `json:"text"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// GenericError is the only error detail returned to callers when an upstream
// provider fails. The cause is logged server side.
const GenericError = "failed to fetch data"
