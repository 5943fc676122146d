package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/glotchimo/afkguard/internal/utils"
)

const (
	CodeInvalidGuildID = "INVALID_GUILD_ID"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Responder struct {
	l *slog.Logger
}

func NewResponder(l *slog.Logger) *Responder {
	return &Responder{l: l}
}

func (r *Responder) Send(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		r.l.Warn("error writing response", "error", err)
	}
}

// Fail answers with the error body for f. Data on internal failures stays in
// the log and never reaches the caller.
func (r *Responder) Fail(w http.ResponseWriter, correlationID string, f utils.Failure) {
	var status int
	var body ErrorBody

	switch f.Type {
	case utils.ErrInvalidGuildID:
		status = http.StatusBadRequest
		body = ErrorBody{Error: CodeInvalidGuildID, Message: f.Message}

	case utils.ErrBadInput:
		status = http.StatusBadRequest
		body = ErrorBody{Error: CodeInvalidRequest, Message: f.Message}

	case utils.ErrUnauthorized:
		status = http.StatusUnauthorized
		body = ErrorBody{Error: CodeUnauthorized, Message: f.Message}

	case utils.ErrNotFound:
		status = http.StatusNotFound
		body = ErrorBody{Error: CodeNotFound, Message: f.Message}

	default:
		r.l.Error("request failed",
			"correlation_id", correlationID,
			"message", f.Message,
			"data", f.Data,
		)
		status = http.StatusInternalServerError
		body = ErrorBody{Error: CodeInternal, Message: "An internal error occurred"}
	}

	if f.Type != utils.ErrInternal {
		r.l.Debug("request rejected", "correlation_id", correlationID, "status", status, "error", body.Error)
	}

	r.Send(w, status, body)
}
