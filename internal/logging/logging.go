package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/caarlos0/env/v11"
)

type Options struct {
	Debug  bool   `env:"DEBUG"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

var (
	current atomic.Pointer[slog.Logger]
	mu      sync.Mutex
)

// Get returns the process logger, building it from the environment on first use.
func Get() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()

	if l := current.Load(); l != nil {
		return l
	}

	var opts Options
	if err := env.Parse(&opts); err != nil {
		opts = Options{Format: "json"}
	}

	l := New(os.Stdout, opts)
	current.Store(l)
	return l
}

// Set replaces the process logger.
func Set(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current.Store(l)
}

func New(w io.Writer, opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{AddSource: true, Level: slog.LevelInfo}
	if opts.Debug {
		ho.Level = slog.LevelDebug
	}

	if opts.Debug || opts.Format == "text" {
		return slog.New(slog.NewTextHandler(w, ho))
	}
	return slog.New(slog.NewJSONHandler(w, ho))
}

// Discard is a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
