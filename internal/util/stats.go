package util

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-channel counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts traffic and drops for one channel. All methods are safe for
// concurrent use and a nil *Stats is a valid no-op receiver.
type Stats struct {
	startTime time.Time

	PacketsSent atomic.Int64 // packets handed to the medium
	PacketsRecv atomic.Int64 // raw deliveries from the medium
	BytesSent   atomic.Int64 // framed bytes handed to the medium
	BytesRecv   atomic.Int64 // framed bytes delivered by the medium

	DroppedMalformed atomic.Int64 // decode failures
	DroppedIntegrity atomic.Int64 // digest mismatches
	DroppedSession   atomic.Int64 // packets for another session
	DroppedPipeline  atomic.Int64 // inbound transform failures
	DroppedOverflow  atomic.Int64 // frames refused by a full receive queue
	TransmitErrors   atomic.Int64 // outbound transform or medium failures

	Resolved atomic.Int64 // packets claimed by a pending waiter
	Timeouts atomic.Int64 // waiters that expired
}

// NewStats creates a counter set with the start time set to now.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) AddSent(n int) {
	if s == nil {
		return
	}
	s.PacketsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *Stats) AddRecv(n int) {
	if s == nil {
		return
	}
	s.PacketsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *Stats) DropMalformed() {
	if s != nil {
		s.DroppedMalformed.Add(1)
	}
}

func (s *Stats) DropIntegrity() {
	if s != nil {
		s.DroppedIntegrity.Add(1)
	}
}

func (s *Stats) DropSession() {
	if s != nil {
		s.DroppedSession.Add(1)
	}
}

func (s *Stats) DropPipeline() {
	if s != nil {
		s.DroppedPipeline.Add(1)
	}
}

func (s *Stats) DropOverflow() {
	if s != nil {
		s.DroppedOverflow.Add(1)
	}
}

func (s *Stats) TransmitError() {
	if s != nil {
		s.TransmitErrors.Add(1)
	}
}

func (s *Stats) AddResolved() {
	if s != nil {
		s.Resolved.Add(1)
	}
}

func (s *Stats) AddTimeout() {
	if s != nil {
		s.Timeouts.Add(1)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Snapshot
// ──────────────────────────────────────────────────────────────────────────────

// Snapshot is a point-in-time copy of a Stats.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	PacketsSent      int64  `json:"packets_sent"`
	PacketsRecv      int64  `json:"packets_recv"`
	BytesSent        int64  `json:"bytes_sent"`
	BytesRecv        int64  `json:"bytes_recv"`
	DroppedMalformed int64  `json:"dropped_malformed"`
	DroppedIntegrity int64  `json:"dropped_integrity"`
	DroppedSession   int64  `json:"dropped_session"`
	DroppedPipeline  int64  `json:"dropped_pipeline"`
	DroppedOverflow  int64  `json:"dropped_overflow"`
	TransmitErrors   int64  `json:"transmit_errors"`
	Resolved         int64  `json:"resolved"`
	Timeouts         int64  `json:"timeouts"`
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Uptime:           time.Since(s.startTime).Truncate(time.Second).String(),
		PacketsSent:      s.PacketsSent.Load(),
		PacketsRecv:      s.PacketsRecv.Load(),
		BytesSent:        s.BytesSent.Load(),
		BytesRecv:        s.BytesRecv.Load(),
		DroppedMalformed: s.DroppedMalformed.Load(),
		DroppedIntegrity: s.DroppedIntegrity.Load(),
		DroppedSession:   s.DroppedSession.Load(),
		DroppedPipeline:  s.DroppedPipeline.Load(),
		DroppedOverflow:  s.DroppedOverflow.Load(),
		TransmitErrors:   s.TransmitErrors.Load(),
		Resolved:         s.Resolved.Load(),
		Timeouts:         s.Timeouts.Load(),
	}
}

// JSON returns the snapshot as an indented JSON string.
func (s *Stats) JSON() string {
	data, _ := json.MarshalIndent(s.Snapshot(), "", "  ")
	return string(data)
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs channel statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, s *Stats, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		secs := interval.Seconds()
		var prevSent, prevRecv, prevDropped int64
		for {
			select {
			case <-ticker.C:
				sent := s.BytesSent.Load()
				recv := s.BytesRecv.Load()
				dropped := s.DroppedMalformed.Load() + s.DroppedIntegrity.Load() +
					s.DroppedSession.Load() + s.DroppedPipeline.Load() +
					s.DroppedOverflow.Load()

				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs
				drops := dropped - prevDropped

				if drops > 0 || inS > 10 || outS > 10 {
					logger.Load().Info(formatStats(inS, outS, drops))
				}

				prevSent = sent
				prevRecv = recv
				prevDropped = dropped

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(inS, outS float64, drops int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Dropped: %d",
		formatBytes(inS),
		formatBytes(outS),
		drops,
	)
}
