package api

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/glotchimo/afkguard/internal/auth"
	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/utils"
)

const correlationHeader = "X-Correlation-ID"

var authMessages = map[auth.Reason]string{
	auth.ReasonMissingHeader: "Missing authorization header",
	auth.ReasonInvalidFormat: "Invalid authorization format",
	auth.ReasonInvalidToken:  "Invalid token",
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// wrap runs h behind the shared pipeline: correlation id, authentication,
// path id shape, guild membership, then the handler. Panics and untyped
// errors end in a generic 500.
func (s *Server) wrap(h handlers.Handler) http.Handler {
	route := h.Metadata()

	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cid := utils.GenerateID()
		w := &statusWriter{ResponseWriter: rw, status: http.StatusOK}
		w.Header().Set(correlationHeader, cid)

		defer func() {
			s.l.Info("request handled",
				"correlation_id", cid,
				"method", r.Method,
				"path", r.URL.Path,
				"status", w.status,
				"duration", time.Since(start),
			)
		}()

		defer func() {
			if rec := recover(); rec != nil {
				s.r.Fail(w, cid, utils.Failure{
					Type:    utils.ErrInternal,
					Message: "panic recovered",
					Data:    map[string]any{"recovered": rec, "route": route.Pattern(), "stack": stack()},
				})
			}
		}()

		if !route.Public {
			if reason := s.gate.Authenticate(r, cid); reason != auth.ReasonOK {
				s.r.Fail(w, cid, utils.Failure{Type: utils.ErrUnauthorized, Message: authMessages[reason]})
				return
			}
		}

		dep := s.deps
		dep.Request = r
		dep.CorrelationID = cid
		dep.Logger = s.l.With("correlation_id", cid)

		if route.Guild {
			id := r.PathValue("id")
			if !utils.ValidGuildID(id) {
				s.r.Fail(w, cid, utils.Failure{Type: utils.ErrInvalidGuildID, Message: "Invalid guild ID format"})
				return
			}
			if !dep.Registry.HasGuild(id) {
				s.r.Fail(w, cid, utils.Failure{Type: utils.ErrNotFound, Message: "Guild not found"})
				return
			}
			dep.GuildID = id
		}

		body, err := h.Handle(r.Context(), dep)
		if err != nil {
			var f utils.Failure
			if !errors.As(err, &f) {
				f = utils.Failure{
					Type:    utils.ErrInternal,
					Message: "handler failed",
					Data:    map[string]any{"error": err.Error(), "route": route.Pattern(), "stack": stack()},
				}
			}
			s.r.Fail(w, cid, f)
			return
		}

		s.r.Send(w, http.StatusOK, body)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.r.Fail(w, utils.GenerateID(), utils.Failure{Type: utils.ErrNotFound, Message: "Route not found"})
}

func stack() string {
	buf := make([]byte, 4096)
	return string(buf[:runtime.Stack(buf, false)])
}
