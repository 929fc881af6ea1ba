// Package elevenlabs synthesizes speech with the ElevenLabs streaming
// WebSocket API. Text is forwarded as it arrives and MP3 audio is returned
// while the model is still generating.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultEndpoint     = "wss://api.elevenlabs.io/v1/text-to-speech"
	defaultModel        = "eleven_flash_v2_5"
	defaultOutputFormat = "mp3_44100_128"

	readFailureTimeout = 2 * time.Second
)

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the output_format, e.g. "mp3_22050_32". Only MP3
// formats can be played back by the client.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithEndpoint overrides the WebSocket base URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

type Provider struct {
	apiKey       string
	voiceID      string
	model        string
	outputFormat string
	endpoint     string
}

func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		voiceID:      voiceID,
		model:        defaultModel,
		outputFormat: defaultOutputFormat,
		endpoint:     defaultEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// initMessage opens the stream. The API requires its text to be a single space.
type initMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// textMessage carries a fragment of text. An empty Text ends the input.
type textMessage struct {
	Text string `json:"text"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (p *Provider) streamURL() (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: invalid endpoint: %w", err)
	}
	u = u.JoinPath(p.voiceID, "stream-input")
	q := u.Query()
	q.Set("model_id", p.model)
	q.Set("output_format", p.outputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, audio chan<- []byte) (err error) {
	wsURL, err := p.streamURL()
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 22)

	if err = writeJSON(ctx, conn, initMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      p.apiKey,
	}); err != nil {
		return fmt.Errorf("elevenlabs: send init: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		readErr <- readAudio(ctx, conn, audio)
	}()

	for open := true; open; {
		select {
		case fragment, ok := <-text:
			if !ok {
				open = false
				break
			}
			if fragment == "" {
				continue
			}
			if err = writeJSON(ctx, conn, textMessage{Text: fragment}); err != nil {
				return readFailure(cancel, readErr, fmt.Errorf("elevenlabs: send text: %w", err))
			}
		case err = <-readErr:
			if err == nil {
				err = errors.New("elevenlabs: stream ended before end of input")
			}
			return err
		}
	}
	if err = writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return readFailure(cancel, readErr, fmt.Errorf("elevenlabs: send end of input: %w", err))
	}
	if err = <-readErr; err != nil {
		return err
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
	return nil
}

// readFailure prefers the error reported by the server over a failed write,
// since a write usually fails because the server closed the connection.
func readFailure(cancel context.CancelFunc, readErr <-chan error, writeErr error) error {
	defer cancel()
	select {
	case err := <-readErr:
		if err != nil {
			return err
		}
	case <-time.After(readFailureTimeout):
	}
	return writeErr
}

func readAudio(ctx context.Context, conn *websocket.Conn, audio chan<- []byte) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("elevenlabs: read: %w", err)
		}
		chunk, final, err := decodeAudioMessage(msg)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			select {
			case audio <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if final {
			return nil
		}
	}
}

func decodeAudioMessage(msg []byte) (chunk []byte, final bool, err error) {
	var am audioMessage
	if err = json.Unmarshal(msg, &am); err != nil {
		return nil, false, fmt.Errorf("elevenlabs: decode message: %w", err)
	}
	if am.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: %s: %s", am.Error, am.Message)
	}
	if am.Audio != "" {
		chunk, err = base64.StdEncoding.DecodeString(am.Audio)
		if err != nil {
			return nil, false, fmt.Errorf("elevenlabs: decode audio: %w", err)
		}
	}
	return chunk, am.IsFinal, nil
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
