package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/1ureka/cmdlink/internal/app"
	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/util"
)

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive asks for the role when no subcommand is given.
func runInteractive(ctx context.Context, cfg *config.Config) error {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host   — Answer commands", "Client — Send commands to a host"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
		return runHost(ctx, cfg)
	}

	cfg.Role = config.RoleClient
	wsURL, err := normalizeWSURL(askURL(), cfg.PIN)
	if err != nil {
		return err
	}
	cfg.URL = wsURL
	return runClient(ctx, cfg, nil)
}

func runHost(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := app.RunHost(ctx, cfg); err != nil {
		return err
	}
	util.LogInfo("session closed")
	return nil
}

// runClient runs the given commands, or reads them from stdin when there
// are none.
func runClient(ctx context.Context, cfg *config.Config, commands []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(commands) > 0 {
		return app.RunClient(ctx, cfg, commands, os.Stdout)
	}

	c, err := app.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	util.StartStatsReporter(ctx, c.Stats(), cfg.StatsInterval)

	next := scanLines(bufio.NewScanner(os.Stdin))
	if isTerminal() {
		util.LogInfo("type a command (help for a list), empty line to quit")
		next = promptLines
	}

	for {
		line, ok := next()
		if !ok || ctx.Err() != nil {
			return nil
		}
		reply, err := c.Do(ctx, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			util.LogError("%s: %v", line, err)
			if errors.Is(err, channel.ErrChannelClosed) {
				return err
			}
			continue
		}
		fmt.Println(reply)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func scanLines(sc *bufio.Scanner) func() (string, bool) {
	return func() (string, bool) {
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				return line, true
			}
		}
		return "", false
	}
}

func promptLines() (string, bool) {
	raw, err := pterm.DefaultInteractiveTextInput.WithDefaultText("cmd").Show()
	line := strings.TrimSpace(raw)
	if err != nil || line == "" || line == "exit" || line == "quit" {
		return "", false
	}
	return line, true
}

// normalizeWSURL validates a host address or WebSocket URL and returns the
// signaling URL, adding pin when the URL carries none. A bare host defaults
// to wss, as port-forwarding services terminate TLS.
func normalizeWSURL(raw, pin string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	q := u.Query()
	if q.Get("pin") == "" && pin != "" {
		q.Set("pin", pin)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// askURL prompts the user for a host URL until a valid one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Host URL (e.g. wss://***.asse.devtunnels.ms/ws?pin=123456)").
			Show()

		if _, err := normalizeWSURL(raw, ""); err == nil {
			pterm.Println()
			return raw
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
