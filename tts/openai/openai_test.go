package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sashabaranov/go-openai"
)

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	p, err := New(openai.NewClientWithConfig(cfg), WithVoice("nova"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func synthesize(p *Provider, fragments ...string) ([]byte, error) {
	text := make(chan string, len(fragments))
	for _, f := range fragments {
		text <- f
	}
	close(text)
	audio := make(chan []byte)
	var collected []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range audio {
			collected = append(collected, chunk...)
		}
	}()
	err := p.SynthesizeStream(context.Background(), text, audio)
	close(audio)
	<-done
	return collected, err
}

func TestSynthesizeStream(t *testing.T) {
	var mu sync.Mutex
	var requests []speechRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req speechRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3" + req.Input))
	})

	audio, err := synthesize(p, "Hello", " there. ", "Bye.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "ID3Hello there.ID3Bye." {
		t.Errorf("unexpected audio %q", audio)
	}
	expected := []speechRequest{
		{Model: "tts-1", Input: "Hello there.", Voice: "nova", ResponseFormat: "mp3"},
		{Model: "tts-1", Input: "Bye.", Voice: "nova", ResponseFormat: "mp3"},
	}
	if diff := cmp.Diff(expected, requests); diff != "" {
		t.Error(diff)
	}
}

func TestSynthesizeStreamError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"unavailable","type":"server_error"}}`))
	})
	if _, err := synthesize(p, "Hello."); err == nil {
		t.Fatal("expected error, got nil")
	}
}
