package post

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/alex/handlers"
	"github.com/a-h/alex/models"
)

type Speaker interface {
	Speak(ctx context.Context, text string, w io.Writer) (n int64, err error)
}

func New(log *slog.Logger, s Speaker) Handler {
	return Handler{
		log:     log,
		speaker: s,
	}
}

type Handler struct {
	log     *slog.Logger
	speaker Speaker
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.SpeechPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		handlers.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		handlers.WithError(w, "text is required", http.StatusBadRequest)
		return
	}

	aw := &audioWriter{w: w}
	n, err := h.speaker.Speak(r.Context(), req.Text, aw)
	if err != nil {
		h.log.Error("failed to synthesize speech", slog.Any("error", err))
		if !aw.written {
			handlers.WithError(w, models.GenericError, http.StatusInternalServerError)
		}
		return
	}
	if !aw.written {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
	}
	h.log.Info("synthesized speech", slog.Int("textBytes", len(req.Text)), slog.Int64("audioBytes", n))
}

type audioWriter struct {
	w       http.ResponseWriter
	written bool
}

func (a *audioWriter) Write(p []byte) (n int, err error) {
	if !a.written {
		a.w.Header().Set("Content-Type", "audio/mpeg")
		a.w.WriteHeader(http.StatusOK)
		a.written = true
	}
	if n, err = a.w.Write(p); err != nil {
		return n, err
	}
	if flusher, canFlush := a.w.(http.Flusher); canFlush {
		flusher.Flush()
	}
	return n, nil
}
