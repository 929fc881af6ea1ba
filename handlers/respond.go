package handlers

import (
	"net/http"

	"github.com/a-h/alex/models"
	"github.com/a-h/respond"
)

// WithError writes an {"error": msg} body.
func WithError(w http.ResponseWriter, msg string, status int) {
	respond.WithJSON(w, models.ErrorResponse{Error: msg}, status)
}
