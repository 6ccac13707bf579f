package app

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/config"
	"github.com/1ureka/cmdlink/internal/medium"
	"github.com/1ureka/cmdlink/internal/util"
)

func TestResponderReply(t *testing.T) {
	ma, _ := medium.NewLoopback()
	ch := channel.New(ma, channel.Options{})
	defer ch.Close()

	r := NewResponder(ch)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	tests := []struct {
		cmd  string
		want string
	}{
		{"ping", "pong"},
		{"PING", "pong"},
		{"echo hello  world", "hello  world"},
		{"  echo  spaced ", "spaced"},
		{"echo", ""},
		{"time", "2026-01-02T03:04:05Z"},
		{"processors", "none"},
		{"", "error: empty command"},
		{"reboot", "error: unknown command"},
	}
	for _, tt := range tests {
		if got := r.Reply(tt.cmd); got != tt.want {
			t.Errorf("Reply(%q) = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}

func TestResponderOverChannel(t *testing.T) {
	ma, mb := medium.NewLoopback()
	session := uuid.New()
	stats := util.NewStats()
	client := channel.New(ma, channel.Options{SessionID: session})
	host := channel.New(mb, channel.Options{SessionID: session, Stats: stats})
	defer client.Close()
	defer host.Close()

	NewResponder(host).Attach()

	accepted := make(chan error, 1)
	go func() { accepted <- host.Accept(context.Background(), 2*time.Second) }()
	if err := client.Open(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := <-accepted; err != nil {
		t.Fatalf("Accept: %v", err)
	}

	reply, err := client.Transceive(context.Background(), uuid.New(), []byte("ping"), time.Second)
	if err != nil || string(reply) != "pong" {
		t.Fatalf("ping = %q, %v", reply, err)
	}
	reply, err = client.Transceive(context.Background(), uuid.New(), []byte("stats"), time.Second)
	if err != nil || !strings.Contains(string(reply), `"packets_recv"`) {
		t.Fatalf("stats = %q, %v", reply, err)
	}
}

func TestHostAndClientOverWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostCfg := config.Defaults()
	hostCfg.Listen = "127.0.0.1:0"
	hostCfg.Processors = []string{"seal", "compress", "obfuscate"}

	h := NewHost(hostCfg)
	port, err := h.Start()
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	served := make(chan error, 1)
	go func() { served <- h.Serve(ctx) }()

	clientCfg := config.Defaults()
	clientCfg.Role = config.RoleClient
	clientCfg.Processors = []string{"seal", "obfuscate"}
	clientCfg.URL = fmt.Sprintf("ws://127.0.0.1:%d/ws?pin=%s", port, h.PIN())

	var out bytes.Buffer
	if err := RunClient(ctx, clientCfg, []string{"ping", "echo over the wire", "processors"}, &out); err != nil {
		t.Fatalf("RunClient: %v", err)
	}

	want := "pong\nover the wire\nseal/x25519-xchacha20poly1305,obfuscate/shake256\n"
	if out.String() != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out.String(), want)
	}

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("host did not notice the client leaving")
	}
}
