package app

import (
	"strings"
	"time"

	"github.com/1ureka/cmdlink/internal/channel"
	"github.com/1ureka/cmdlink/internal/util"
)

// Responder answers command requests arriving on a channel. Each reply is
// transmitted under the request's message id so the client's Transceive
// resolves with it.
type Responder struct {
	ch  *channel.Channel
	now func() time.Time
}

// NewResponder creates a responder bound to ch. Call Attach to start
// answering.
func NewResponder(ch *channel.Channel) *Responder {
	return &Responder{ch: ch, now: time.Now}
}

// Attach subscribes the responder to ch's data events.
func (r *Responder) Attach() {
	r.ch.OnData(func(ev channel.DataEvent) {
		cmd := string(ev.Payload)
		reply := r.Reply(cmd)
		util.LogDebug("command %q from %s", cmd, ev.MessageID)
		if err := r.ch.Transmit(ev.MessageID, []byte(reply)); err != nil {
			util.LogDebug("reply to %s not sent: %v", ev.MessageID, err)
		}
	})
}

// Reply computes the answer to one command line.
func (r *Responder) Reply(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "error: empty command"
	}

	switch strings.ToLower(fields[0]) {
	case "ping":
		return "pong"
	case "echo":
		return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cmd), fields[0]))
	case "time":
		return r.now().UTC().Format(time.RFC3339)
	case "stats":
		return r.ch.Stats().JSON()
	case "processors":
		if ids := r.ch.Processors(); len(ids) > 0 {
			return strings.Join(ids, ",")
		}
		return "none"
	case "help":
		return "commands: ping, echo <text>, time, stats, processors, help"
	default:
		return "error: unknown command"
	}
}
