package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"refresh-notify/internal/infrastructure/logger"
)

// Dispatcher pushes a stamped event to every open stream of a subscriber.
type Dispatcher interface {
	Dispatch(ctx context.Context, eventID string, kind Kind, publisher Publisher, subscriberID string)
}

// Input is the notify call made by a mutation resolver after it completes
// a side-effecting action. The resolver decides who to notify and is
// expected to suppress self-notification before calling in.
type Input struct {
	EventID      string
	Kind         Kind
	Publisher    Publisher
	SubscriberID string
}

// Notifier is the inbound facade in front of the dispatcher. It validates
// caller input and mints an event ID when the caller did not supply one.
type Notifier struct {
	dispatcher Dispatcher
	logger     logger.Logger
}

func NewNotifier(dispatcher Dispatcher, log logger.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		logger:     log.WithField("component", "notifier"),
	}
}

// Notify validates the input and hands it to the dispatcher. Delivery is
// fire-and-forget: transport failures never surface here, only contract
// violations do.
func (n *Notifier) Notify(ctx context.Context, in Input) error {
	if in.SubscriberID == "" {
		return fmt.Errorf("notify: subscriber id is required")
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("notify: unknown event kind %q", in.Kind)
	}
	if in.Publisher.ID == "" {
		return fmt.Errorf("notify: publisher id is required")
	}

	eventID := in.EventID
	if eventID == "" {
		eventID = uuid.NewString()
		n.logger.Debugf("minted event id %s for kind %s", eventID, in.Kind)
	}

	n.dispatcher.Dispatch(ctx, eventID, in.Kind, in.Publisher, in.SubscriberID)
	return nil
}
