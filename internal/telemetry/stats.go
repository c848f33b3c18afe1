// Package telemetry provides operator-facing observability for a running
// cascade agent: a periodic rate reporter and a debug WebSocket feed of
// predicate snapshots. Neither is part of the relay protocol itself —
// spec.md's non-goals exclude protocol-level membership/flow-control
// changes, not read-only telemetry for an operator.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is the process-wide counters for one agent's SenderCore. Grounded
// almost directly on 1ureka-roj1/internal/util/stats.go's
// atomic-counter-singleton plus ticker-based reporter, repurposed from
// DataChannel byte counters to per-message send/ack rates. There is no
// connection-open/close counter here: unlike the teacher's single
// long-lived DataChannel, a SenderCore's peer connections are fixed for its
// whole lifetime (dialed once at construction, closed once at shutdown), so
// an open/close rate carries no information a predicate snapshot doesn't
// already give an operator.
type Stats struct {
	MessagesSent atomic.Int64
	AcksReceived atomic.Int64
}

func (s *Stats) AddSent() { s.MessagesSent.Add(1) }
func (s *Stats) AddAck()  { s.AcksReceived.Add(1) }

// StartReporter launches a goroutine that logs send/ack rates every 10
// seconds, stopping when ctx is cancelled — the same ticker/delta pattern
// as 1ureka-roj1/internal/util/stats.go's StartStatsReporter.
func (s *Stats) StartReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevAcks int64
		for {
			select {
			case <-ticker.C:
				sent := s.MessagesSent.Load()
				acks := s.AcksReceived.Load()

				sentRate := float64(sent-prevSent) / 10.0
				ackRate := float64(acks-prevAcks) / 10.0

				if sentRate > 0 || ackRate > 0 {
					pterm.DefaultLogger.Info(formatStats(sentRate, ackRate))
				}

				prevSent = sent
				prevAcks = acks

			case <-ctx.Done():
				return
			}
		}
	}()
}

func formatStats(sentRate, ackRate float64) string {
	return fmt.Sprintf("sent %.1f msg/s | acked %.1f msg/s", sentRate, ackRate)
}
