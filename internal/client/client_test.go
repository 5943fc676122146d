package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/glotchimo/afkguard/internal/logging"
	"github.com/glotchimo/afkguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = "123456789012345678"

type stub struct {
	hits   atomic.Int32
	status int
	body   string
	check  func(*http.Request)
}

func newStub(t *testing.T, status int, body string) (*stub, *Client) {
	t.Helper()
	s := &stub{status: status, body: body}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.check != nil {
			s.check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		io.WriteString(w, s.body)
	}))
	t.Cleanup(srv.Close)
	return s, New(srv.URL, "tok", logging.Discard())
}

func TestInvalidGuildIDNeverHitsNetwork(t *testing.T) {
	s, c := newStub(t, http.StatusOK, `{}`)
	ctx := context.Background()

	for _, id := range []string{"", "abc", "1234567890123456", "12345678901234567890"} {
		_, err := c.Enable(ctx, id)
		assert.Equal(t, KindInvalidGuildID, KindOf(err), id)

		_, err = c.Disable(ctx, id)
		assert.Equal(t, KindInvalidGuildID, KindOf(err), id)

		_, err = c.GuildStatus(ctx, id)
		assert.Equal(t, KindInvalidGuildID, KindOf(err), id)

		_, err = c.UpdateConfig(ctx, models.GuildConfigUpdate{GuildID: id})
		assert.Equal(t, KindInvalidGuildID, KindOf(err), id)
	}

	assert.Zero(t, s.hits.Load())
}

func TestEnable(t *testing.T) {
	s, c := newStub(t, http.StatusOK, `{"success":true,"guildId":"`+guildID+`","enabled":true}`)
	s.check = func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/guilds/"+guildID+"/enable", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	}

	res, err := c.Enable(context.Background(), guildID)
	require.NoError(t, err)
	assert.Equal(t, models.ToggleResult{Success: true, GuildID: guildID, Enabled: true}, res)
}

func TestShapeChecks(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(*Client) error
	}{
		{"not json", `<html>`, func(c *Client) error { _, err := c.Health(context.Background()); return err }},
		{"health missing ready", `{"status":"ok","uptime":1,"guilds":0}`, func(c *Client) error { _, err := c.Health(context.Background()); return err }},
		{"status missing memory", `{"guilds":1,"voiceConnections":0}`, func(c *Client) error { _, err := c.Status(context.Background()); return err }},
		{"toggle not confirmed", `{"success":true,"guildId":"` + guildID + `","enabled":false}`, func(c *Client) error { _, err := c.Enable(context.Background(), guildID); return err }},
		{"toggle wrong guild", `{"success":true,"guildId":"987654321098765432","enabled":false}`, func(c *Client) error { _, err := c.Disable(context.Background(), guildID); return err }},
		{"toggle unsuccessful", `{"success":false,"guildId":"` + guildID + `","enabled":true}`, func(c *Client) error { _, err := c.Enable(context.Background(), guildID); return err }},
		{"guild status missing connected", `{"guildId":"` + guildID + `","enabled":true}`, func(c *Client) error { _, err := c.GuildStatus(context.Background(), guildID); return err }},
		{"null body", `null`, func(c *Client) error { _, err := c.Status(context.Background()); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newStub(t, http.StatusOK, tt.body)
			assert.Equal(t, KindInvalidResponse, KindOf(tt.call(c)))
		})
	}
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{"unauthorized", 401, `{"error":"UNAUTHORIZED","message":"Invalid token"}`, KindUnauthorized, "Invalid token"},
		{"not found", 404, `{"error":"NOT_FOUND","message":"Guild not found"}`, KindNotFound, "Guild not found"},
		{"internal", 500, `{"error":"INTERNAL_ERROR","message":"An internal error occurred"}`, KindInternal, "An internal error occurred"},
		{"forbidden", 403, `{"error":"FORBIDDEN","message":"nope"}`, KindForbidden, "nope"},
		{"bad request", 400, `{"error":"INVALID_REQUEST","message":"Invalid request body"}`, KindAPI, "Invalid request body"},
		{"unparsed 404", 404, `not found`, KindNotFound, "Not Found"},
		{"unparsed 502", 502, ``, KindInternal, "Bad Gateway"},
		{"unparsed 418", 418, `teapot`, KindAPI, "I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, c := newStub(t, tt.status, tt.body)

			_, err := c.GuildStatus(context.Background(), guildID)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.message, e.Message)
			assert.EqualValues(t, 1, s.hits.Load(), "no retries")
		})
	}
}

func TestNetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1", "tok", logging.Discard())

	_, err := c.Health(context.Background())
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindNetwork, e.Kind)
	assert.Zero(t, e.Status)
	assert.Error(t, e.Unwrap())
}

func TestGuildStatus(t *testing.T) {
	_, c := newStub(t, http.StatusOK, `{
		"guildId": "`+guildID+`",
		"enabled": false,
		"afkTimeoutSeconds": 120,
		"warningSecondsBefore": null,
		"warningChannelId": null,
		"connected": true
	}`)

	s, err := c.GuildStatus(context.Background(), guildID)
	require.NoError(t, err)
	assert.Equal(t, guildID, s.GuildID)
	assert.False(t, s.Enabled)
	assert.True(t, s.Connected)
	require.NotNil(t, s.AFKTimeoutSeconds)
	assert.Equal(t, 120, *s.AFKTimeoutSeconds)
	assert.Nil(t, s.WarningSecondsBefore)
	assert.Equal(t, []string{}, s.ExemptRoleIDs)
}

func TestUpdateConfigSendsOnlyTouchedFields(t *testing.T) {
	s, c := newStub(t, http.StatusOK, `{"guildId":"`+guildID+`","enabled":true,"exemptRoleIds":[],"adminRoleIds":[]}`)
	s.check = func(r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"enabled": true, "warningChannelId": nil}, body)
	}

	g, err := c.UpdateConfig(context.Background(), models.GuildConfigUpdate{
		GuildID:          guildID,
		Enabled:          models.Set(true),
		WarningChannelID: models.Clear[string](),
	})
	require.NoError(t, err)
	assert.True(t, g.Enabled)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "NOT_FOUND (404): Guild not found", (&Error{Kind: KindNotFound, Status: 404, Message: "Guild not found"}).Error())
	assert.Equal(t, "NETWORK_ERROR: refused", (&Error{Kind: KindNetwork, Message: "refused"}).Error())
	assert.Equal(t, Kind(""), KindOf(io.EOF))
}
