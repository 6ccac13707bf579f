// Cmdlink: CLI entry point.
//
// This tool opens a command channel between two machines. The host runs a
// PIN-guarded WebSocket signaling server; the client joins it, and the two
// negotiate encryption and compression before exchanging commands over
// either the WebSocket itself or a WebRTC DataChannel.
//
// Configuration is layered: defaults, then the YAML file named by
// CMDLINK_CONFIG (or ~/.cmdlink/config.yaml), then CMDLINK_* environment
// variables, then flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	root := newRootCmd(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	path := os.Getenv("CMDLINK_CONFIG")
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.LoadFile(cfg, path); err != nil {
		return nil, err
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "cmdlink",
		Short:         "Command channel over WebSocket or WebRTC",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfg.Debug {
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("Cmdlink — v%s", version))
			pterm.Println()
		},
		// No subcommand → interactive mode.
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal() {
				return cmd.Help()
			}
			return runInteractive(cmd.Context(), cfg)
		},
	}
	config.BindFlags(root.PersistentFlags(), cfg)

	root.AddCommand(newHostCmd(cfg), newClientCmd(cfg))
	return root
}

func newHostCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Serve one client session and answer its commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleHost
			return runHost(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Listen, "listen", cfg.Listen, "signaling listen address (\":0\" picks a port)")
	cmd.Flags().StringVar(&cfg.PIN, "pin", cfg.PIN, "PIN clients must present (generated when empty)")
	return cmd
}

func newClientCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client [url] [command...]",
		Short: "Join a host and run commands",
		Long: `Join a host and run commands. Commands come from the arguments, from
stdin when it is not a terminal, or from an interactive prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleClient
			if len(args) > 0 {
				cfg.URL = args[0]
				args = args[1:]
			}
			if cfg.URL == "" {
				if !isTerminal() {
					return fmt.Errorf("missing host url")
				}
				cfg.URL = askURL()
			}
			wsURL, err := normalizeWSURL(cfg.URL, cfg.PIN)
			if err != nil {
				return err
			}
			cfg.URL = wsURL
			return runClient(cmd.Context(), cfg, args)
		},
	}
	cmd.Flags().StringVar(&cfg.PIN, "pin", cfg.PIN, "PIN to present when the url has none")
	return cmd
}
