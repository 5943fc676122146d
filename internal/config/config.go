package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/graxinc/errutil"
	"github.com/joho/godotenv"
)

type Conf struct {
	Debug        bool          `env:"DEBUG"`
	Token        string        `env:"BOT_TOKEN"`
	Intents      int           `env:"BOT_INTENTS" envDefault:"129"` // guilds | guild voice states
	DatabasePath string        `env:"DATABASE_PATH" envDefault:"data/afkguard.db"`
	CacheURL     string        `env:"REDIS_URL"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	APIPort      int           `env:"API_PORT" envDefault:"3000"`
	APIToken     string        `env:"API_TOKEN"`
	APIBaseURL   string        `env:"ADMIN_API_URL" envDefault:"http://127.0.0.1:3000"`
	PurgeOnLeave bool          `env:"PURGE_ON_LEAVE"`
	PresenceTick time.Duration `env:"PRESENCE_INTERVAL" envDefault:"10m"`
}

// Load reads .env files when present and then the process environment.
func Load(files ...string) (Conf, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Conf{}, errutil.With(err)
	}

	var conf Conf
	if err := env.Parse(&conf); err != nil {
		return Conf{}, errutil.With(err)
	}

	return conf, nil
}

var (
	ErrMissingToken    = errors.New("BOT_TOKEN is required")
	ErrMissingAPIToken = errors.New("API_TOKEN is required")
	ErrInvalidPort     = errors.New("API_PORT must be between 1 and 65535")
)

// Validate checks the settings the serve command cannot run without.
func (c Conf) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, ErrMissingToken)
	}
	if c.APIToken == "" {
		errs = append(errs, ErrMissingAPIToken)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	return errors.Join(errs...)
}
