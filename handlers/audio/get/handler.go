package get

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/alex/clips"
	"github.com/a-h/alex/handlers"
	"github.com/a-h/alex/models"
)

// New returns a handler that serves a stored clip. The route must have an
// {id} wildcard.
func New(log *slog.Logger, store clips.Store) Handler {
	return Handler{
		log:   log,
		store: store,
	}
}

type Handler struct {
	log   *slog.Logger
	store clips.Store
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		handlers.WithError(w, "clip id is required", http.StatusBadRequest)
		return
	}
	clip, ok, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.log.Error("failed to get clip", slog.String("id", id), slog.Any("error", err))
		handlers.WithError(w, models.GenericError, http.StatusInternalServerError)
		return
	}
	if !ok {
		handlers.WithError(w, "clip not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(clip)))
	w.WriteHeader(http.StatusOK)
	if _, err = w.Write(clip); err != nil {
		h.log.Warn("failed to write clip", slog.String("id", id), slog.Any("error", err))
	}
}
