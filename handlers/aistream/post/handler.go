package post

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/alex/handlers"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/relay"
)

type Relay interface {
	Stream(ctx context.Context, turns []models.ChatTurn, wantsAudio bool, w io.Writer) (relay.StreamResult, error)
}

func New(log *slog.Logger, r Relay) Handler {
	return Handler{
		log:   log,
		relay: r,
	}
}

type Handler struct {
	log   *slog.Logger
	relay Relay
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.AIStreamPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		handlers.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if err = relay.Validate(req.Messages); err != nil {
		h.log.Warn("invalid request", slog.Any("error", err))
		handlers.WithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Trailer", strings.Join([]string{models.TrailerTextLength, models.TrailerRelayStatus}, ", "))
	contentType := "application/octet-stream"
	if req.Muted {
		contentType = "text/plain; charset=utf-8"
	}
	fw := &flushWriter{w: w, contentType: contentType}

	h.log.Info("relaying conversation", slog.Int("turns", len(req.Messages)), slog.Bool("muted", req.Muted))
	res, err := h.relay.Stream(r.Context(), req.Messages, !req.Muted, fw)
	if err != nil {
		h.log.Error("failed to relay conversation", slog.Any("error", err))
		if !fw.written {
			handlers.WithError(w, models.GenericError, http.StatusInternalServerError)
			return
		}
		// The status line has been sent, so the failure can only be reported in
		// the trailer.
		w.Header().Set(models.TrailerRelayStatus, models.StatusError)
		return
	}
	if !fw.written {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set(models.TrailerTextLength, strconv.Itoa(res.TextLength))
	w.Header().Set(models.TrailerRelayStatus, models.StatusOK)
	h.log.Info("relayed conversation", slog.Int("textBytes", res.TextLength), slog.Int64("audioBytes", res.AudioLength))
}

// flushWriter sends each chunk to the client as soon as it is written.
type flushWriter struct {
	w           http.ResponseWriter
	contentType string
	written     bool
}

func (f *flushWriter) Write(p []byte) (n int, err error) {
	if !f.written {
		f.w.Header().Set("Content-Type", f.contentType)
		f.w.WriteHeader(http.StatusOK)
		f.written = true
	}
	if n, err = f.w.Write(p); err != nil {
		return n, err
	}
	if flusher, canFlush := f.w.(http.Flusher); canFlush {
		flusher.Flush()
	}
	return n, nil
}
