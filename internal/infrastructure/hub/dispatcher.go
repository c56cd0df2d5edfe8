package hub

import (
	"context"
	"encoding/json"

	"github.com/jonboulle/clockwork"

	"refresh-notify/internal/infrastructure/logger"
	"refresh-notify/internal/notification"
)

// Dispatcher routes a freshly stamped notification event to every open
// connection of the target subscriber. Delivery is best-effort: an offline
// subscriber is a cheap no-op and a failed write prunes the dead
// connection without disturbing the rest of the fan-out.
type Dispatcher struct {
	hub    *Hub
	clock  clockwork.Clock
	logger logger.Logger
}

func NewDispatcher(h *Hub, clock clockwork.Clock, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		hub:    h,
		clock:  clock,
		logger: log.WithField("component", "dispatcher"),
	}
}

// Dispatch constructs the event, stamping created and updated timestamps
// from the current wall clock, serializes it once and writes the identical
// payload to each of the subscriber's connections. Transport failures are
// logged and swallowed; the mutation that triggered the event must never
// see them.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	eventID string,
	kind notification.Kind,
	publisher notification.Publisher,
	subscriberID string,
) {
	if subscriberID == "" || !kind.Valid() {
		d.logger.Warnf("rejecting malformed event %q (kind %q, subscriber %q)", eventID, kind, subscriberID)
		return
	}

	conns := d.hub.registry.ConnectionsFor(subscriberID)
	if len(conns) == 0 {
		return
	}

	event := notification.NewEvent(eventID, kind, publisher, d.clock.Now())
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Errorf("failed to marshal event %s: %v", eventID, err)
		return
	}

	// Delivery is detached from the caller's context: the notify request
	// aborting must not read as a transport failure and tear down healthy
	// streams. Writes stay bounded by each connection's own context and
	// write timeout.
	deliveryCtx := context.WithoutCancel(ctx)

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(deliveryCtx, payload); err != nil {
			d.logger.Infof("pruning dead connection %d for subscriber %s: %v", conn.ID(), subscriberID, err)
			d.hub.CloseStream(subscriberID, conn)
			continue
		}
		delivered++
	}

	d.logger.Debugf("event %s (%s) delivered to %d/%d connections of %s", eventID, kind, delivered, len(conns), subscriberID)
}
