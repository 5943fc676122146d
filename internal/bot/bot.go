package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/afkguard/internal/utils"
	"github.com/graxinc/errutil"
)

type Configs interface {
	DeleteGuildConfig(ctx context.Context, guildID string) error
}

type Counter interface {
	CountEnabled(ctx context.Context) (int, error)
}

type Options struct {
	Token        string
	Intents      int
	PurgeOnLeave bool
	PresenceTick time.Duration
}

// Bot owns the gateway session and answers membership and voice connection
// queries for the admin API.
type Bot struct {
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	s *dg.Session
	c Configs
	n Counter
	l *slog.Logger

	opts   Options
	ready  atomic.Bool
	guilds map[string]string

	open  func() error
	retry time.Duration
}

func NewBot(l *slog.Logger, c Configs, n Counter, opts Options) (*Bot, error) {
	session, err := dg.New("Bot " + opts.Token)
	if err != nil {
		return nil, errutil.With(err)
	}
	session.Identify.Intents = dg.Intent(opts.Intents)

	b := newBot(l, session, c, n, opts)

	b.s.AddHandler(func(s *dg.Session, r *dg.Ready) { b.onReady(r) })
	b.s.AddHandler(func(s *dg.Session, g *dg.GuildCreate) { b.register(g.Guild) })
	b.s.AddHandler(func(s *dg.Session, g *dg.GuildDelete) { b.remove(g.Guild) })
	b.s.AddHandler(func(s *dg.Session, d *dg.Disconnect) {
		b.ready.Store(false)
		b.l.Warn("gateway disconnected")
	})

	return b, nil
}

func newBot(l *slog.Logger, s *dg.Session, c Configs, n Counter, opts Options) *Bot {
	if opts.PresenceTick <= 0 {
		opts.PresenceTick = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		ctx:    ctx,
		cancel: cancel,
		s:      s,
		c:      c,
		n:      n,
		l:      l,
		opts:   opts,
		guilds: make(map[string]string),
		open:   s.Open,
		retry:  5 * time.Second,
	}
}

// Open starts connecting to the gateway and the presence loop, and returns
// without waiting for the handshake. Ready stays false until READY arrives.
func (b *Bot) Open() {
	b.wg.Add(2)
	go b.connect()
	go b.status()
}

// connect retries the gateway handshake with backoff until it succeeds or the
// bot is closed.
func (b *Bot) connect() {
	defer b.wg.Done()

	delay := b.retry
	for attempt := 1; ; attempt++ {
		if b.ctx.Err() != nil {
			return
		}

		err := b.open()
		if err == nil {
			b.l.Info("gateway session opened", "attempts", attempt)
			return
		}
		b.l.Error("error opening gateway session", "attempt", attempt, "retry", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-b.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay = min(delay*2, time.Minute)
	}
}

func (b *Bot) Close() error {
	b.cancel()
	b.wg.Wait()
	b.ready.Store(false)
	return b.s.Close()
}

func (b *Bot) Ready() bool {
	return b.ready.Load()
}

func (b *Bot) GuildCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.guilds)
}

func (b *Bot) HasGuild(guildID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.guilds[guildID]
	return ok
}

// VoiceConnected reports whether the session holds a ready voice connection
// in the guild.
func (b *Bot) VoiceConnected(guildID string) bool {
	b.s.RLock()
	vc, ok := b.s.VoiceConnections[guildID]
	b.s.RUnlock()

	if !ok || vc == nil {
		return false
	}

	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

func (b *Bot) VoiceConnectionCount() int {
	b.s.RLock()
	conns := make([]*dg.VoiceConnection, 0, len(b.s.VoiceConnections))
	for _, vc := range b.s.VoiceConnections {
		conns = append(conns, vc)
	}
	b.s.RUnlock()

	count := 0
	for _, vc := range conns {
		if vc == nil {
			continue
		}
		vc.RLock()
		if vc.Ready {
			count++
		}
		vc.RUnlock()
	}
	return count
}

// onReady replaces the membership with the guilds READY lists, which drops
// guilds left while the session was down.
func (b *Bot) onReady(r *dg.Ready) {
	guilds := make(map[string]string, len(r.Guilds))

	b.mu.Lock()
	for _, g := range r.Guilds {
		if g == nil {
			continue
		}
		name := g.Name
		if name == "" {
			name = b.guilds[g.ID]
		}
		guilds[g.ID] = name
	}
	b.guilds = guilds
	count := len(b.guilds)
	b.mu.Unlock()

	b.ready.Store(true)

	attrs := []any{"guilds", count, "version", utils.GetCommit()}
	if r.User != nil {
		attrs = append(attrs, "bot", r.User.Username)
	}
	b.l.Info("bot connected to gateway", attrs...)
}

func (b *Bot) register(g *dg.Guild) {
	if g == nil {
		return
	}

	b.mu.Lock()
	b.guilds[g.ID] = g.Name
	b.mu.Unlock()

	b.l.Info("registered guild", "id", g.ID, "name", g.Name)
}

// remove forgets a guild the bot left. Outages arrive as deletes with
// Unavailable set and keep the membership.
func (b *Bot) remove(g *dg.Guild) {
	if g == nil {
		return
	}

	if g.Unavailable {
		b.l.Warn("guild unavailable", "id", g.ID)
		return
	}

	b.mu.Lock()
	delete(b.guilds, g.ID)
	b.mu.Unlock()

	b.l.Info("removed guild", "id", g.ID)

	if !b.opts.PurgeOnLeave || b.c == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			b.l.Error("panic recovered", "guild", g.ID, "recovered", r, "stack", string(stack))
		}
	}()

	if err := b.c.DeleteGuildConfig(b.ctx, g.ID); err != nil {
		b.l.Error("error purging guild config", "guild", g.ID, "error", err)
		return
	}
	b.l.Info("purged guild config", "guild", g.ID)
}

// presence returns the custom status for rotation step i.
func (b *Bot) presence(i int) (string, error) {
	switch i % 2 {
	case 0:
		return fmt.Sprintf("Watching %d servers", b.GuildCount()), nil
	default:
		if b.n == nil {
			return "", nil
		}
		count, err := b.n.CountEnabled(b.ctx)
		if err != nil {
			return "", errutil.With(err)
		}
		return fmt.Sprintf("Guarding %d servers", count), nil
	}
}

func (b *Bot) status() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.opts.PresenceTick)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			msg, err := b.presence(i)
			i++
			if err != nil {
				b.l.Error("error building bot status", "error", err)
				continue
			}
			if msg == "" || !b.Ready() {
				continue
			}

			if err := b.s.UpdateStatusComplex(dg.UpdateStatusData{
				Status: string(dg.StatusOnline),
				Activities: []*dg.Activity{
					{
						Name:  "AFK Guard",
						Type:  dg.ActivityTypeCustom,
						State: msg,
					},
				},
			}); err != nil {
				b.l.Error("error setting bot status", "error", err)
			}
		}
	}
}
