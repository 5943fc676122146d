package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/models"
	"github.com/glotchimo/afkguard/internal/utils"
	"github.com/graxinc/errutil"
)

const maxBodyBytes = 64 << 10

type GuildStatus struct{}

func (g *GuildStatus) Metadata() handlers.Route {
	return handlers.Route{
		Method: http.MethodGet,
		Path:   "/api/guilds/{id}/status",
		Guild:  true,
	}
}

func (g *GuildStatus) Handle(ctx context.Context, dep handlers.Dependencies) (any, error) {
	stored, err := dep.Store.FindGuildConfig(ctx, dep.GuildID)
	if err != nil {
		return nil, errutil.With(err)
	}

	cfg := models.NewGuildConfig(dep.GuildID)
	if stored != nil {
		cfg = *stored
	}

	return models.GuildStatus{
		GuildID:              cfg.GuildID,
		Enabled:              cfg.Enabled,
		AFKTimeoutSeconds:    cfg.AFKTimeoutSeconds,
		WarningSecondsBefore: cfg.WarningSecondsBefore,
		WarningChannelID:     cfg.WarningChannelID,
		ExemptRoleIDs:        cfg.ExemptRoleIDs,
		AdminRoleIDs:         cfg.AdminRoleIDs,
		Connected:            dep.Registry.VoiceConnected(dep.GuildID),
	}, nil
}

// Toggle serves both the enable and the disable route.
type Toggle struct {
	Enabled bool
}

func (t *Toggle) Metadata() handlers.Route {
	action := "disable"
	if t.Enabled {
		action = "enable"
	}

	return handlers.Route{
		Method: http.MethodPost,
		Path:   "/api/guilds/{id}/" + action,
		Guild:  true,
	}
}

func (t *Toggle) Handle(ctx context.Context, dep handlers.Dependencies) (any, error) {
	g, err := dep.Store.UpsertGuildConfig(ctx, models.GuildConfigUpdate{
		GuildID: dep.GuildID,
		Enabled: models.Set(t.Enabled),
	})
	if err != nil {
		return nil, errutil.With(err)
	}

	dep.Logger.Info("guild toggled", "guild", g.GuildID, "enabled", g.Enabled)

	return models.ToggleResult{Success: true, GuildID: g.GuildID, Enabled: g.Enabled}, nil
}

type UpdateConfig struct{}

func (u *UpdateConfig) Metadata() handlers.Route {
	return handlers.Route{
		Method: http.MethodPatch,
		Path:   "/api/guilds/{id}/config",
		Guild:  true,
	}
}

func (u *UpdateConfig) Handle(ctx context.Context, dep handlers.Dependencies) (any, error) {
	dec := json.NewDecoder(io.LimitReader(dep.Request.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var update models.GuildConfigUpdate
	if err := dec.Decode(&update); err != nil {
		return nil, utils.Failure{
			Type:    utils.ErrBadInput,
			Message: "Invalid request body",
			Data:    map[string]any{"error": err},
		}
	}

	if err := validateUpdate(update); err != nil {
		return nil, utils.Failure{Type: utils.ErrBadInput, Message: err.Error()}
	}

	update.GuildID = dep.GuildID

	g, err := dep.Store.UpsertGuildConfig(ctx, update)
	if err != nil {
		return nil, errutil.With(err)
	}

	dep.Logger.Info("guild config updated", "guild", g.GuildID, "columns", update.Columns())

	return g, nil
}

func validateUpdate(u models.GuildConfigUpdate) error {
	if v, ok := u.AFKTimeoutSeconds.Value(); ok && v <= 0 {
		return errors.New("afkTimeoutSeconds must be positive")
	}
	if v, ok := u.WarningSecondsBefore.Value(); ok && v < 0 {
		return errors.New("warningSecondsBefore must not be negative")
	}
	if v, ok := u.WarningChannelID.Value(); ok && !utils.ValidSnowflake(v) {
		return errors.New("warningChannelId must be a snowflake")
	}
	for field, f := range map[string]models.Field[[]string]{
		"exemptRoleIds": u.ExemptRoleIDs,
		"adminRoleIds":  u.AdminRoleIDs,
	} {
		ids, _ := f.Value()
		for _, id := range ids {
			if !utils.ValidSnowflake(id) {
				return fmt.Errorf("%s must contain only snowflakes", field)
			}
		}
	}
	return nil
}
