package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/glotchimo/afkguard/internal/models"
	"github.com/glotchimo/afkguard/internal/response"
	"github.com/glotchimo/afkguard/internal/utils"
	"github.com/go-resty/resty/v2"
)

// Client talks to the admin API. Requests are never retried.
type Client struct {
	r *resty.Client
	l *slog.Logger
}

func New(baseURL, token string, l *slog.Logger) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(0).
		SetAuthToken(token).
		SetDisableWarn(true).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{l})

	return &Client{r: r, l: l}
}

func (c *Client) Health(ctx context.Context) (models.HealthStatus, error) {
	var raw struct {
		Status  *string  `json:"status"`
		Uptime  *float64 `json:"uptime"`
		Ready   *bool    `json:"ready"`
		Guilds  *int     `json:"guilds"`
		Version string   `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &raw); err != nil {
		return models.HealthStatus{}, err
	}
	if raw.Status == nil || raw.Uptime == nil || raw.Ready == nil || raw.Guilds == nil {
		return models.HealthStatus{}, invalid("health body is missing fields")
	}

	return models.HealthStatus{
		Status:  *raw.Status,
		Uptime:  *raw.Uptime,
		Ready:   *raw.Ready,
		Guilds:  *raw.Guilds,
		Version: raw.Version,
	}, nil
}

func (c *Client) Status(ctx context.Context) (models.BotStatus, error) {
	var raw struct {
		Guilds           *int           `json:"guilds"`
		VoiceConnections *int           `json:"voiceConnections"`
		Memory           *models.Memory `json:"memory"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &raw); err != nil {
		return models.BotStatus{}, err
	}
	if raw.Guilds == nil || raw.VoiceConnections == nil || raw.Memory == nil {
		return models.BotStatus{}, invalid("status body is missing fields")
	}

	return models.BotStatus{Guilds: *raw.Guilds, VoiceConnections: *raw.VoiceConnections, Memory: *raw.Memory}, nil
}

func (c *Client) GuildStatus(ctx context.Context, guildID string) (models.GuildStatus, error) {
	if err := checkGuildID(guildID); err != nil {
		return models.GuildStatus{}, err
	}

	var raw struct {
		models.GuildStatus
		GuildID   *string `json:"guildId"`
		Enabled   *bool   `json:"enabled"`
		Connected *bool   `json:"connected"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/guilds/"+guildID+"/status", nil, &raw); err != nil {
		return models.GuildStatus{}, err
	}
	if raw.GuildID == nil || *raw.GuildID != guildID || raw.Enabled == nil || raw.Connected == nil {
		return models.GuildStatus{}, invalid("guild status body does not describe the requested guild")
	}

	s := raw.GuildStatus
	s.GuildID, s.Enabled, s.Connected = *raw.GuildID, *raw.Enabled, *raw.Connected
	if s.ExemptRoleIDs == nil {
		s.ExemptRoleIDs = []string{}
	}
	if s.AdminRoleIDs == nil {
		s.AdminRoleIDs = []string{}
	}
	return s, nil
}

func (c *Client) Enable(ctx context.Context, guildID string) (models.ToggleResult, error) {
	return c.toggle(ctx, guildID, true)
}

func (c *Client) Disable(ctx context.Context, guildID string) (models.ToggleResult, error) {
	return c.toggle(ctx, guildID, false)
}

func (c *Client) toggle(ctx context.Context, guildID string, enabled bool) (models.ToggleResult, error) {
	if err := checkGuildID(guildID); err != nil {
		return models.ToggleResult{}, err
	}

	action := "disable"
	if enabled {
		action = "enable"
	}

	var raw struct {
		Success *bool   `json:"success"`
		GuildID *string `json:"guildId"`
		Enabled *bool   `json:"enabled"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/guilds/"+guildID+"/"+action, nil, &raw); err != nil {
		return models.ToggleResult{}, err
	}
	if raw.Success == nil || !*raw.Success || raw.GuildID == nil || *raw.GuildID != guildID ||
		raw.Enabled == nil || *raw.Enabled != enabled {
		return models.ToggleResult{}, invalid(action + " body does not confirm the change")
	}

	return models.ToggleResult{Success: true, GuildID: guildID, Enabled: enabled}, nil
}

func (c *Client) UpdateConfig(ctx context.Context, u models.GuildConfigUpdate) (models.GuildConfig, error) {
	if err := checkGuildID(u.GuildID); err != nil {
		return models.GuildConfig{}, err
	}

	body, err := json.Marshal(u)
	if err != nil {
		return models.GuildConfig{}, &Error{Kind: KindInternal, Message: "encoding update", Err: err}
	}

	var g models.GuildConfig
	if err := c.do(ctx, http.MethodPatch, "/api/guilds/"+u.GuildID+"/config", body, &g); err != nil {
		return models.GuildConfig{}, err
	}
	if g.GuildID != u.GuildID {
		return models.GuildConfig{}, invalid("config body does not describe the requested guild")
	}

	return g, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req := c.r.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.l.Debug("admin api unreachable", "method", method, "path", path, "error", err)
		return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	if !resp.IsSuccess() {
		return failure(status, resp.Body())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &Error{Kind: KindInvalidResponse, Status: status, Message: "response is not valid JSON", Err: err}
	}

	return nil
}

// failure maps a non-2xx response to an Error, preferring the server's own
// code when the body parses.
func failure(status int, raw []byte) *Error {
	var body response.ErrorBody
	parsed := json.Unmarshal(raw, &body) == nil && body.Error != ""

	e := &Error{Kind: KindAPI, Status: status, Message: http.StatusText(status)}
	if parsed && body.Message != "" {
		e.Message = body.Message
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case parsed:
		switch body.Error {
		case response.CodeNotFound:
			e.Kind = KindNotFound
		case response.CodeInternal:
			e.Kind = KindInternal
		case string(KindForbidden):
			e.Kind = KindForbidden
		case response.CodeInvalidGuildID:
			e.Kind = KindInvalidGuildID
		}
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusForbidden:
		e.Kind = KindForbidden
	case status >= http.StatusInternalServerError:
		e.Kind = KindInternal
	}

	return e
}

func checkGuildID(id string) error {
	if !utils.ValidGuildID(id) {
		return &Error{Kind: KindInvalidGuildID, Message: fmt.Sprintf("invalid guild id %q", id)}
	}
	return nil
}

func invalid(msg string) error {
	return &Error{Kind: KindInvalidResponse, Message: msg, Err: errors.New(msg)}
}

type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
