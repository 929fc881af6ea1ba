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
	"github.com/google/go-cmp/cmp"
)

func TestHandler(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))

	t.Run("returns the completion", func(t *testing.T) {
		h := New(log, relay.New(log, &mock.LLM{Chunks: []string{"Hello."}, StopReason: "stop"}, persona.Default()))
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/ai", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
		h.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var actual models.AIPostResponse
		if err := json.Unmarshal(w.Body.Bytes(), &actual); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		expected := models.AIPostResponse{
			Role:         models.RoleAssistant,
			Content:      "Hello.",
			FinishReason: "stop",
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Error(diff)
		}
	})

	tests := []struct {
		name           string
		llm            *mock.LLM
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unknown role",
			llm:            &mock.LLM{},
			body:           `{"messages":[{"role":"robot","content":"hi"}]}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			llm:            &mock.LLM{},
			body:           `[`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "failed to decode body",
		},
		{
			name:           "provider failure",
			llm:            &mock.LLM{Err: errors.New("unavailable")},
			body:           `{"messages":[{"role":"user","content":"hi"}]}`,
			expectedStatus: http.StatusInternalServerError,
			expectedError:  models.GenericError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(log, relay.New(log, tt.llm, persona.Default()))
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/ai", strings.NewReader(tt.body))
			h.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var er models.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if er.Error == "" {
				t.Error("expected an error message")
			}
			if tt.expectedError != "" && er.Error != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, er.Error)
			}
		})
	}
}
