package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"
)

type fakeServer struct {
	t        *testing.T
	fail     bool
	mu       sync.Mutex
	path     string
	query    string
	apiKey   string
	received []string
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.path = r.URL.Path
	s.query = r.URL.RawQuery
	s.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.t.Errorf("accept: %v", err)
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	_, msg, err := conn.Read(ctx)
	if err != nil {
		s.t.Errorf("read init: %v", err)
		return
	}
	var init initMessage
	if err := json.Unmarshal(msg, &init); err != nil {
		s.t.Errorf("decode init: %v", err)
		return
	}
	s.mu.Lock()
	s.apiKey = init.XiAPIKey
	s.mu.Unlock()

	if s.fail {
		data, _ := json.Marshal(audioMessage{Error: "quota_exceeded", Message: "no credits left"})
		_ = conn.Write(ctx, websocket.MessageText, data)
		return
	}

	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			s.t.Errorf("read text: %v", err)
			return
		}
		var tm textMessage
		if err := json.Unmarshal(msg, &tm); err != nil {
			s.t.Errorf("decode text: %v", err)
			return
		}
		if tm.Text == "" {
			break
		}
		s.mu.Lock()
		s.received = append(s.received, tm.Text)
		s.mu.Unlock()
	}

	for i, chunk := range []string{"ID3", "frame"} {
		data, _ := json.Marshal(audioMessage{
			Audio:   base64.StdEncoding.EncodeToString([]byte(chunk)),
			IsFinal: i == 1,
		})
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			s.t.Errorf("write audio: %v", err)
			return
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func run(t *testing.T, p *Provider, fragments ...string) ([]byte, error) {
	t.Helper()
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
	fs := &fakeServer{t: t}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	p, err := New("key-1", "voice-1", WithEndpoint(srv.URL), WithModel("model-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	audio, err := run(t, p, "Hello ", "", "there.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "ID3frame" {
		t.Errorf("expected audio %q, got %q", "ID3frame", audio)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if diff := cmp.Diff([]string{"Hello ", "there."}, fs.received); diff != "" {
		t.Errorf("unexpected text sent: %s", diff)
	}
	if fs.apiKey != "key-1" {
		t.Errorf("expected api key to be sent in the init message, got %q", fs.apiKey)
	}
	if fs.path != "/voice-1/stream-input" {
		t.Errorf("unexpected path %q", fs.path)
	}
	if !strings.Contains(fs.query, "model_id=model-1") || !strings.Contains(fs.query, "output_format=mp3_44100_128") {
		t.Errorf("unexpected query %q", fs.query)
	}
}

func TestSynthesizeStreamProviderError(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{t: t, fail: true})
	defer srv.Close()

	p, err := New("key-1", "voice-1", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = run(t, p, "Hello.")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "quota_exceeded") {
		t.Errorf("expected provider error to be returned, got %v", err)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New("", "voice"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("key", ""); err == nil {
		t.Error("expected error for empty voice")
	}
}

func TestDecodeAudioMessage(t *testing.T) {
	chunk, final, err := decodeAudioMessage([]byte(`{"audio":"SUQz","isFinal":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(chunk) != "ID3" || !final {
		t.Errorf("expected final ID3 chunk, got %q final=%v", chunk, final)
	}
	if _, _, err = decodeAudioMessage([]byte(`{"audio":"!!"}`)); err == nil {
		t.Error("expected error for invalid base64")
	}
}
