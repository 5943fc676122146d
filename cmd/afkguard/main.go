package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glotchimo/afkguard/internal/api"
	"github.com/glotchimo/afkguard/internal/bot"
	"github.com/glotchimo/afkguard/internal/cache"
	"github.com/glotchimo/afkguard/internal/config"
	"github.com/glotchimo/afkguard/internal/database"
	"github.com/glotchimo/afkguard/internal/handlers"
	"github.com/glotchimo/afkguard/internal/logging"
	"github.com/glotchimo/afkguard/internal/metrics"
	"github.com/graxinc/errutil"
	"github.com/spf13/cobra"
)

var VERSION = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "afkguard",
	Short:         "Voice channel AFK guard bot and its admin API",
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect the bot and serve the admin API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the settings store",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load when present")
	rootCmd.AddCommand(serveCmd, migrateCmd, guildCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConf() (config.Conf, error) {
	conf, err := config.Load(envFile)
	if err != nil {
		return config.Conf{}, err
	}

	logging.Set(logging.New(os.Stdout, logging.Options{Debug: conf.Debug, Format: os.Getenv("LOG_FORMAT")}))
	return conf, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	conf, err := loadConf()
	if err != nil {
		return err
	}

	return database.Migrate(logging.Get(), conf.DatabasePath)
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := loadConf()
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	l := logging.Get()

	db, err := database.NewDatabase(l, conf.DatabasePath)
	if err != nil {
		return errutil.With(err)
	}
	defer db.Close()

	var store interface {
		handlers.Store
		bot.Configs
	} = db

	if conf.CacheURL != "" {
		c, err := cache.NewCache(conf.CacheURL, conf.CacheTTL, l, db)
		if err != nil {
			return errutil.With(err)
		}
		defer c.Close()
		store = c
	}

	b, err := bot.NewBot(l, store, db, bot.Options{
		Token:        conf.Token,
		Intents:      conf.Intents,
		PurgeOnLeave: conf.PurgeOnLeave,
		PresenceTick: conf.PresenceTick,
	})
	if err != nil {
		return errutil.With(err)
	}
	defer b.Close()

	srv := api.NewServer(l, api.Options{Port: conf.APIPort, Token: conf.APIToken}, store, b, metrics.NewSource(b))
	if err := start(srv, b); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	l.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(ctx)
}

// start brings the admin API up before the gateway handshake begins, so health
// answers while the bot is still connecting.
func start(srv interface{ Start() error }, b interface{ Open() }) error {
	if err := srv.Start(); err != nil {
		return err
	}
	b.Open()
	return nil
}
