package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/glotchimo/afkguard/internal/client"
	"github.com/glotchimo/afkguard/internal/logging"
	"github.com/glotchimo/afkguard/internal/toggle"
	"github.com/glotchimo/afkguard/internal/utils"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the admin API health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		h, err := c.Health(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "up %s\n", utils.FormatDuration(time.Duration(h.Uptime*float64(time.Second))))
		return printJSON(h)
	},
}

var guildCmd = &cobra.Command{
	Use:   "guild",
	Short: "Inspect and toggle the AFK guard per guild",
}

var guildStatusCmd = &cobra.Command{
	Use:   "status <guild-id>",
	Short: "Show stored config and voice connection for a guild",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		s, err := c.GuildStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

var guildEnableCmd = &cobra.Command{
	Use:   "enable <guild-id>",
	Short: "Enable the AFK guard in a guild",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSet(cmd.Context(), args[0], true) },
}

var guildDisableCmd = &cobra.Command{
	Use:   "disable <guild-id>",
	Short: "Disable the AFK guard in a guild",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runSet(cmd.Context(), args[0], false) },
}

var guildToggleCmd = &cobra.Command{
	Use:   "toggle <guild-id>",
	Short: "Flip the AFK guard in a guild, rolling back on failure",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

func init() {
	guildCmd.AddCommand(guildStatusCmd, guildEnableCmd, guildDisableCmd, guildToggleCmd)
}

func newClient() (*client.Client, error) {
	conf, err := loadConf()
	if err != nil {
		return nil, err
	}
	return client.New(conf.APIBaseURL, conf.APIToken, logging.Get()), nil
}

func runSet(ctx context.Context, guildID string, enabled bool) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	call := c.Disable
	if enabled {
		call = c.Enable
	}

	res, err := call(ctx, guildID)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runToggle(cmd *cobra.Command, args []string) error {
	guildID := args[0]

	c, err := newClient()
	if err != nil {
		return err
	}

	current, err := c.GuildStatus(cmd.Context(), guildID)
	if err != nil {
		return err
	}

	var failed error
	ctl := toggle.New(c, toggle.Options{
		OnChange: func(id string, s toggle.State) {
			fmt.Fprintf(os.Stderr, "%s enabled=%t busy=%t\n", id, s.Optimistic, s.Busy)
		},
		OnFailure: func(id string, err error) { failed = err },
	})
	defer ctl.Close()

	ctl.Sync(guildID, current.Enabled)
	if !ctl.Activate(guildID) {
		return errors.New("toggle already in flight")
	}
	ctl.Wait()

	if failed != nil {
		return fmt.Errorf("toggle rolled back: %w", failed)
	}
	return printJSON(ctl.State(guildID))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
