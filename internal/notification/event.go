package notification

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the user action that produced a notification.
type Kind string

const (
	KindLikedPost             Kind = "liked-post"
	KindLikedComment          Kind = "liked-comment"
	KindCommentedOnPost       Kind = "commented-on-post"
	KindRepliedToComment      Kind = "replied-to-comment"
	KindFollowed              Kind = "followed"
	KindFollowRequestReceived Kind = "follow-request-received"
	KindFollowRequestAccepted Kind = "follow-request-accepted"
)

var kinds = map[Kind]struct{}{
	KindLikedPost:             {},
	KindLikedComment:          {},
	KindCommentedOnPost:       {},
	KindRepliedToComment:      {},
	KindFollowed:              {},
	KindFollowRequestReceived: {},
	KindFollowRequestAccepted: {},
}

// Valid reports whether k is one of the known notification kinds.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Publisher is a denormalized snapshot of the user whose action produced
// the event. It is copied at send time and carries no reference to a live
// user record.
type Publisher struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserName  string `json:"userName"`
	PfpPath   string `json:"pfpPath"`
}

// EpochMillis serializes a point in time as milliseconds since the Unix
// epoch, matching what browser clients expect.
type EpochMillis time.Time

func (m EpochMillis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(m).UnixMilli(), 10), nil
}

func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("epoch millis: %w", err)
	}
	*m = EpochMillis(time.UnixMilli(ms).UTC())
	return nil
}

// Time returns the underlying time value.
func (m EpochMillis) Time() time.Time {
	return time.Time(m)
}

// Event is the immutable value pushed to a subscriber's open streams.
// Field order is stable so every connection receives an identical payload.
type Event struct {
	ID        string      `json:"_id"`
	Kind      Kind        `json:"eventType"`
	Publisher Publisher   `json:"publisher"`
	CreatedAt EpochMillis `json:"createdAt"`
	UpdatedAt EpochMillis `json:"updatedAt"`
}

// NewEvent stamps a fresh event at send time. Created and updated
// timestamps are always equal for a live push.
func NewEvent(id string, kind Kind, publisher Publisher, now time.Time) Event {
	return Event{
		ID:        id,
		Kind:      kind,
		Publisher: publisher,
		CreatedAt: EpochMillis(now),
		UpdatedAt: EpochMillis(now),
	}
}
