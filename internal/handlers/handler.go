package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/glotchimo/afkguard/internal/models"
)

type Store interface {
	FindGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	UpsertGuildConfig(ctx context.Context, u models.GuildConfigUpdate) (*models.GuildConfig, error)
}

// Registry answers membership and connection questions about the live bot.
type Registry interface {
	Ready() bool
	GuildCount() int
	HasGuild(guildID string) bool
	VoiceConnected(guildID string) bool
}

type Metrics interface {
	Uptime() time.Duration
	VoiceConnections() int
	Memory() models.Memory
}

// Route describes where a handler is mounted. Public routes skip
// authentication; guild routes take an {id} path value that must name a
// guild the bot is in.
type Route struct {
	Method string
	Path   string
	Public bool
	Guild  bool
}

func (r Route) Pattern() string {
	return r.Method + " " + r.Path
}

type Dependencies struct {
	Store         Store
	Registry      Registry
	Metrics       Metrics
	Logger        *slog.Logger
	Request       *http.Request
	GuildID       string
	CorrelationID string
}

type Handler interface {
	Metadata() Route
	Handle(context.Context, Dependencies) (any, error)
}
