package post

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a-h/alex/models"
	"github.com/a-h/alex/persona"
	"github.com/a-h/alex/relay"
	"github.com/a-h/alex/relay/mock"
	ttsmock "github.com/a-h/alex/tts/mock"
	"github.com/google/go-cmp/cmp"
)

func TestHandler(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	synth := &ttsmock.Synthesizer{Chunks: [][]byte{[]byte("ID3abc")}}

	tests := []struct {
		name             string
		llm              *mock.LLM
		body             string
		expectedStatus   int
		expectedBody     string
		expectedError    string
		expectedTrailers map[string]string
	}{
		{
			name:           "muted replies with text only",
			llm:            &mock.LLM{Chunks: []string{"Hello", " there."}},
			body:           `{"messages":[{"role":"user","content":"hello there"}],"muted":true}`,
			expectedStatus: http.StatusOK,
			expectedBody:   "Hello there.",
			expectedTrailers: map[string]string{
				models.TrailerTextLength:  "12",
				models.TrailerRelayStatus: models.StatusOK,
			},
		},
		{
			name:           "unmuted replies with text then audio",
			llm:            &mock.LLM{Chunks: []string{"Hello", " there."}},
			body:           `{"messages":[{"role":"user","content":"hello there"}]}`,
			expectedStatus: http.StatusOK,
			expectedBody:   "Hello there.ID3abc",
			expectedTrailers: map[string]string{
				models.TrailerTextLength:  "12",
				models.TrailerRelayStatus: models.StatusOK,
			},
		},
		{
			name:           "invalid JSON",
			llm:            &mock.LLM{},
			body:           `{"messages":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "failed to decode body",
		},
		{
			name:           "no messages",
			llm:            &mock.LLM{},
			body:           `{"messages":[]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  relay.ErrNoTurns.Error(),
		},
		{
			name:           "provider failure",
			llm:            &mock.LLM{Err: errors.New("connection refused")},
			body:           `{"messages":[{"role":"user","content":"hello there"}],"muted":true}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  models.GenericError,
		},
		{
			name:           "provider failure after text was sent",
			llm:            &mock.LLM{Chunks: []string{"Hel"}, Err: errors.New("connection reset")},
			body:           `{"messages":[{"role":"user","content":"hello there"}],"muted":true}`,
			expectedStatus: http.StatusOK,
			expectedBody:   "Hel",
			expectedTrailers: map[string]string{
				models.TrailerRelayStatus: models.StatusError,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := relay.New(log, tt.llm, persona.Default(), relay.WithSynthesizer(synth))
			h := New(log, rl)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/ai-stream", strings.NewReader(tt.body))
			h.ServeHTTP(w, r)

			res := w.Result()
			if res.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, res.StatusCode)
			}
			body, err := io.ReadAll(res.Body)
			if err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if tt.expectedError != "" {
				var er models.ErrorResponse
				if err := json.Unmarshal(body, &er); err != nil {
					t.Fatalf("failed to decode error body %q: %v", body, err)
				}
				if er.Error != tt.expectedError {
					t.Errorf("expected error %q, got %q", tt.expectedError, er.Error)
				}
				return
			}
			if diff := cmp.Diff(tt.expectedBody, string(body)); diff != "" {
				t.Error(diff)
			}
			actualTrailers := map[string]string{}
			for k := range res.Trailer {
				actualTrailers[k] = res.Trailer.Get(k)
			}
			if diff := cmp.Diff(tt.expectedTrailers, actualTrailers); diff != "" {
				t.Error(diff)
			}
		})
	}
}
