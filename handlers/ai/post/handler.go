package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/alex/handlers"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/relay"
	"github.com/a-h/respond"
)

type Relay interface {
	Complete(ctx context.Context, turns []models.ChatTurn) (relay.Completion, error)
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
	var req models.AIPostRequest
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

	c, err := h.relay.Complete(r.Context(), req.Messages)
	if err != nil {
		h.log.Error("failed to complete conversation", slog.Any("error", err))
		handlers.WithError(w, models.GenericError, http.StatusInternalServerError)
		return
	}

	resp := models.AIPostResponse{
		Role:         models.RoleAssistant,
		Content:      c.Content,
		FinishReason: c.FinishReason,
		Index:        c.Index,
		AudioURL:     c.AudioURL,
	}
	respond.WithJSON(w, resp, http.StatusOK)
}
