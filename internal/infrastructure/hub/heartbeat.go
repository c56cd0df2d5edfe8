package hub

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"refresh-notify/internal/infrastructure/logger"
)

// heartbeat periodically touches every registered connection with a
// keep-alive frame, pruning any connection that fails to accept the write.
// It is the registry's self-healing pass for disconnects that no dispatch
// happened to notice.
type heartbeat struct {
	hub      *Hub
	interval time.Duration
	clock    clockwork.Clock
	logger   logger.Logger
}

func newHeartbeat(h *Hub, interval time.Duration, clock clockwork.Clock, log logger.Logger) *heartbeat {
	return &heartbeat{
		hub:      h,
		interval: interval,
		clock:    clock,
		logger:   log.WithField("component", "heartbeat"),
	}
}

// run ticks until ctx is cancelled. It is started once by Hub.Start and
// has no other stop condition.
func (hb *heartbeat) run(ctx context.Context) {
	ticker := hb.clock.NewTicker(hb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			hb.sweep(ctx)
		case <-ctx.Done():
			hb.logger.Info("heartbeat stopped")
			return
		}
	}
}

// sweep writes a keep-alive to every connection in a registry snapshot.
// A failure on one connection never halts iteration over the rest.
func (hb *heartbeat) sweep(ctx context.Context) {
	pruned := 0
	for subscriberID, conns := range hb.hub.registry.Entries() {
		for _, conn := range conns {
			if err := conn.KeepAlive(ctx); err != nil {
				hb.logger.Infof("pruning dead connection %d for subscriber %s: %v", conn.ID(), subscriberID, err)
				hb.hub.CloseStream(subscriberID, conn)
				pruned++
			}
		}
	}

	if pruned > 0 {
		hb.logger.Infof("heartbeat pruned %d connections, %d remain", pruned, hb.hub.registry.ConnectionCount())
	}
}
