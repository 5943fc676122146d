package routes

import (
	"context"
	"net/http"

	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/models"
	"github.com/glotchimo/afkguard/internal/utils"
)

type Health struct{}

func (h *Health) Metadata() handlers.Route {
	return handlers.Route{
		Method: http.MethodGet,
		Path:   "/health",
		Public: true,
	}
}

func (h *Health) Handle(ctx context.Context, dep handlers.Dependencies) (any, error) {
	return models.HealthStatus{
		Status:  "ok",
		Uptime:  dep.Metrics.Uptime().Seconds(),
		Ready:   dep.Registry.Ready(),
		Guilds:  dep.Registry.GuildCount(),
		Version: utils.GetCommit(),
	}, nil
}
