package signaling_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/cmdlink/internal/signaling"
)

func startServer(t *testing.T) (*signaling.Server, int) {
	t.Helper()
	srv := signaling.NewServer(signaling.GeneratePIN(6))
	port, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv, port
}

func TestServeAnnouncesSession(t *testing.T) {
	srv, port := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := signaling.Session{ID: uuid.New(), Medium: "websocket"}
	served := make(chan error, 1)
	go func() {
		conn, err := signaling.Serve(ctx, srv, want)
		if conn != nil {
			defer conn.Close()
		}
		served <- err
	}()

	conn, got, err := signaling.Dial(ctx, signaling.URL(fmt.Sprintf("127.0.0.1:%d", port), srv.PIN()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if got != want {
		t.Fatalf("session %+v, want %+v", got, want)
	}
	if err := <-served; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestDialRejectsWrongPIN(t *testing.T) {
	_, port := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := signaling.Dial(ctx, signaling.URL(fmt.Sprintf("127.0.0.1:%d", port), "nope"))
	if err == nil {
		t.Fatal("Dial with wrong PIN succeeded")
	}
}

func TestServeHonoursContext(t *testing.T) {
	srv, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := signaling.Serve(ctx, srv, signaling.Session{ID: uuid.New()}); err == nil {
		t.Fatal("Serve returned without a client")
	}
}

func TestGeneratePIN(t *testing.T) {
	pin := signaling.GeneratePIN(8)
	if len(pin) != 8 {
		t.Fatalf("len = %d", len(pin))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in %q", r, pin)
		}
	}
}
