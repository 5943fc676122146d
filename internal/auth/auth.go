package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

type Reason string

const (
	ReasonOK            Reason = ""
	ReasonMissingHeader Reason = "missing header"
	ReasonInvalidFormat Reason = "invalid format"
	ReasonInvalidToken  Reason = "invalid token"
)

const scheme = "Bearer "

// Gate checks bearer tokens against one configured secret. Both sides are
// reduced to an HMAC-SHA256 digest under a per-process random key before the
// constant-time compare, so the cost does not depend on the presented length.
type Gate struct {
	l        *slog.Logger
	key      []byte
	expected []byte
}

func NewGate(l *slog.Logger, secret string) *Gate {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}

	g := &Gate{l: l, key: key}
	g.expected = g.digest(secret)
	return g
}

func (g *Gate) digest(token string) []byte {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Match reports whether token equals the configured secret.
func (g *Gate) Match(token string) bool {
	return subtle.ConstantTimeCompare(g.digest(token), g.expected) == 1
}

// Check evaluates an Authorization header value.
func (g *Gate) Check(header string) Reason {
	if header == "" {
		return ReasonMissingHeader
	}

	if !strings.HasPrefix(header, scheme) {
		return ReasonInvalidFormat
	}

	token := header[len(scheme):]
	if strings.TrimSpace(token) == "" {
		return ReasonInvalidFormat
	}

	if !g.Match(token) {
		return ReasonInvalidToken
	}

	return ReasonOK
}

// Authenticate checks r and logs the decision under correlationID.
func (g *Gate) Authenticate(r *http.Request, correlationID string) Reason {
	reason := g.Check(r.Header.Get("Authorization"))

	attrs := []any{
		"correlation_id", correlationID,
		"remote", r.RemoteAddr,
		"path", r.URL.Path,
	}

	if reason != ReasonOK {
		g.l.Warn("authentication rejected", append(attrs, "reason", string(reason))...)
	} else {
		g.l.Info("authentication accepted", attrs...)
	}

	return reason
}
