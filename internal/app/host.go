package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/signaling"
	"github.com/1ureka/cmdlink/internal/util"
)

// Host serves one client session: it announces the session over the
// signaling server, accepts the client's handshake and answers commands
// until either side closes.
type Host struct {
	cfg   *config.Config
	srv   *signaling.Server
	port  int
	stats *util.Stats
}

// NewHost creates a host for cfg. A PIN is generated when cfg has none.
func NewHost(cfg *config.Config) *Host {
	pin := cfg.PIN
	if pin == "" {
		pin = signaling.GeneratePIN(6)
	}
	return &Host{
		cfg:   cfg,
		srv:   signaling.NewServer(pin),
		stats: util.NewStats(),
	}
}

// Start opens the signaling listener and returns its port.
func (h *Host) Start() (int, error) {
	port, err := h.srv.Start(h.cfg.Listen)
	if err != nil {
		return 0, err
	}
	h.port = port
	return port, nil
}

// PIN returns the PIN the client must present.
func (h *Host) PIN() string { return h.srv.PIN() }

// Stats returns the session counters.
func (h *Host) Stats() *util.Stats { return h.stats }

// Serve runs one session to completion. Start must have been called.
func (h *Host) Serve(ctx context.Context) error {
	defer h.srv.Close()

	// ── 1. Announce the session to the first client ──────────────────
	session := signaling.Session{ID: uuid.New(), Medium: h.cfg.Medium}
	conn, err := signaling.Serve(ctx, h.srv, session)
	if err != nil {
		return err
	}
	h.srv.Close()

	// ── 2. Medium ────────────────────────────────────────────────────
	m, err := newMedium(ctx, conn, session.Medium, true, h.cfg)
	if err != nil {
		return err
	}

	// ── 3. Channel + responder ───────────────────────────────────────
	ch, err := newChannel(m, h.cfg, session.ID, h.stats)
	if err != nil {
		m.Close()
		return err
	}
	defer ch.Close()
	NewResponder(ch).Attach()

	if err := ch.Accept(ctx, h.cfg.OpenTimeout); err != nil {
		return fmt.Errorf("app: accept: %w", err)
	}
	util.LogSuccess("session %s ready over %s, processors %v", session.ID, session.Medium, ch.Processors())
	util.StartStatsReporter(ctx, h.stats, h.cfg.StatsInterval)

	// ── 4. Answer commands until shutdown ────────────────────────────
	select {
	case <-ch.Done():
		util.LogInfo("session %s ended", session.ID)
	case <-ctx.Done():
		util.LogInfo("shutting down")
	}
	return nil
}

// RunHost starts a host, prints how to reach it and serves one session.
func RunHost(ctx context.Context, cfg *config.Config) error {
	h := NewHost(cfg)
	port, err := h.Start()
	if err != nil {
		return err
	}

	pterm.DefaultBox.WithTitle("cmdlink host").Println(fmt.Sprintf(
		"Port   : %d\nPIN    : %s\nMedium : %s\nURL    : %s",
		port, h.PIN(), cfg.Medium, signaling.URL(fmt.Sprintf("127.0.0.1:%d", port), h.PIN()),
	))
	util.LogInfo("waiting for client...")

	return h.Serve(ctx)
}
