package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/afkguard/internal/logging/logtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const guildID = "123456789012345678"

type fakeConfigs struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (f *fakeConfigs) DeleteGuildConfig(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

type countFunc func(context.Context) (int, error)

func (f countFunc) CountEnabled(ctx context.Context) (int, error) { return f(ctx) }

func newTestBot(t *testing.T, c Configs, n Counter, opts Options) (*Bot, *logtest.Recorder) {
	t.Helper()
	rec := logtest.NewRecorder()
	b := newBot(rec.Logger(), &dg.Session{VoiceConnections: make(map[string]*dg.VoiceConnection)}, c, n, opts)
	t.Cleanup(b.cancel)
	return b, rec
}

func TestMembership(t *testing.T) {
	b, _ := newTestBot(t, nil, nil, Options{})

	assert.False(t, b.Ready())
	assert.False(t, b.HasGuild(guildID))

	b.onReady(&dg.Ready{Guilds: []*dg.Guild{{ID: guildID}, {ID: "223456789012345678"}}})
	assert.True(t, b.Ready())
	assert.Equal(t, 2, b.GuildCount())

	b.register(&dg.Guild{ID: guildID, Name: "renamed"})
	assert.Equal(t, 2, b.GuildCount())
	assert.True(t, b.HasGuild(guildID))

	b.remove(&dg.Guild{ID: guildID, Unavailable: true})
	assert.True(t, b.HasGuild(guildID), "an outage keeps membership")

	b.remove(&dg.Guild{ID: guildID})
	assert.False(t, b.HasGuild(guildID))
	assert.Equal(t, 1, b.GuildCount())
}

func TestReadyRebuildsMembership(t *testing.T) {
	b, _ := newTestBot(t, nil, nil, Options{})

	b.register(&dg.Guild{ID: guildID, Name: "left while offline"})
	b.register(&dg.Guild{ID: "223456789012345678", Name: "kept"})

	b.onReady(&dg.Ready{Guilds: []*dg.Guild{{ID: "223456789012345678", Unavailable: true}, {ID: "323456789012345678"}}})

	assert.False(t, b.HasGuild(guildID))
	assert.True(t, b.HasGuild("223456789012345678"))
	assert.True(t, b.HasGuild("323456789012345678"))
	assert.Equal(t, 2, b.GuildCount())
	assert.Equal(t, "kept", b.guilds["223456789012345678"])
}

func TestOpenRetriesInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	b, rec := newTestBot(t, nil, nil, Options{})
	b.retry = time.Millisecond

	var attempts atomic.Int32
	opened := make(chan struct{})
	b.open = func() error {
		if attempts.Add(1) < 3 {
			return errors.New("gateway unavailable")
		}
		close(opened)
		return nil
	}

	b.Open()
	assert.False(t, b.Ready())

	select {
	case <-opened:
	case <-time.After(5 * time.Second):
		t.Fatal("gateway never opened")
	}
	assert.False(t, b.Ready(), "ready waits for READY")

	b.cancel()
	b.wg.Wait()

	assert.EqualValues(t, 3, attempts.Load())
	assert.Len(t, rec.Find("error opening gateway session"), 2)
	assert.Len(t, rec.Find("gateway session opened"), 1)

	b.onReady(&dg.Ready{})
	assert.True(t, b.Ready())
}

func TestCancelStopsReconnecting(t *testing.T) {
	defer goleak.VerifyNone(t)

	b, _ := newTestBot(t, nil, nil, Options{})
	b.retry = time.Hour

	var attempts atomic.Int32
	b.open = func() error {
		attempts.Add(1)
		return errors.New("gateway unavailable")
	}

	b.Open()
	assert.Eventually(t, func() bool { return attempts.Load() == 1 }, 5*time.Second, time.Millisecond)

	b.cancel()
	b.wg.Wait()

	assert.EqualValues(t, 1, attempts.Load())
}

func TestPurgeOnLeave(t *testing.T) {
	tests := []struct {
		name        string
		purge       bool
		unavailable bool
		deleted     int
	}{
		{"disabled", false, false, 0},
		{"enabled", true, false, 1},
		{"outage", true, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configs := &fakeConfigs{}
			b, _ := newTestBot(t, configs, nil, Options{PurgeOnLeave: tt.purge})

			b.register(&dg.Guild{ID: guildID})
			b.remove(&dg.Guild{ID: guildID, Unavailable: tt.unavailable})

			assert.Len(t, configs.deleted, tt.deleted)
		})
	}
}

func TestPurgeFailureIsLogged(t *testing.T) {
	b, rec := newTestBot(t, &fakeConfigs{err: errors.New("locked")}, nil, Options{PurgeOnLeave: true})

	b.register(&dg.Guild{ID: guildID})
	b.remove(&dg.Guild{ID: guildID})

	logged := rec.Find("error purging guild config")
	require.Len(t, logged, 1)
	assert.Equal(t, guildID, logged[0].Attrs["guild"])
}

func TestVoiceConnections(t *testing.T) {
	b, _ := newTestBot(t, nil, nil, Options{})

	b.s.VoiceConnections[guildID] = &dg.VoiceConnection{Ready: true}
	b.s.VoiceConnections["223456789012345678"] = &dg.VoiceConnection{Ready: false}
	b.s.VoiceConnections["323456789012345678"] = nil

	assert.True(t, b.VoiceConnected(guildID))
	assert.False(t, b.VoiceConnected("223456789012345678"))
	assert.False(t, b.VoiceConnected("323456789012345678"))
	assert.False(t, b.VoiceConnected("423456789012345678"))
	assert.Equal(t, 1, b.VoiceConnectionCount())
}

func TestPresenceRotation(t *testing.T) {
	b, _ := newTestBot(t, nil, countFunc(func(context.Context) (int, error) { return 4, nil }), Options{})
	b.register(&dg.Guild{ID: guildID})

	msg, err := b.presence(0)
	require.NoError(t, err)
	assert.Equal(t, "Watching 1 servers", msg)

	msg, err = b.presence(1)
	require.NoError(t, err)
	assert.Equal(t, "Guarding 4 servers", msg)

	b.n = countFunc(func(context.Context) (int, error) { return 0, errors.New("closed") })
	_, err = b.presence(3)
	assert.Error(t, err)
}
