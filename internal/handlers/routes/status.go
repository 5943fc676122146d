package routes

import (
	"context"
	"net/http"

	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/models"
)

type Status struct{}

func (s *Status) Metadata() handlers.Route {
	return handlers.Route{
		Method: http.MethodGet,
		Path:   "/api/status",
	}
}

func (s *Status) Handle(ctx context.Context, dep handlers.Dependencies) (any, error) {
	return models.BotStatus{
		Guilds:           dep.Registry.GuildCount(),
		VoiceConnections: dep.Metrics.VoiceConnections(),
		Memory:           dep.Metrics.Memory(),
	}, nil
}
