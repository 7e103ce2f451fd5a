// Package push abstracts the server's push channel as an injectable
// capability. The monitor subscribes per session id and swaps subscriptions
// when the active session changes; nothing else in the tree touches the
// underlying transport.
package push

import "context"

// Topics. Session-scoped events carry the session id; schedule-updated is
// global because a schedule edit can make a session appear where none was.
const (
	TopicScheduleUpdated = "schedule-updated"

	topicStatusChanged = "session:%s:status-changed"
	topicTimeUpdate    = "session:%s:time-update"
)

type Handler func(topic string, payload []byte)

type Bus interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
	Unsubscribe(topic string)
	Close() error
}

// StatusChangedPayload signals a server-side lifecycle change; handled by a
// full resynchronization fetch.
type StatusChangedPayload struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// TimeUpdatePayload is a narrow gating-flag patch. Nil fields are left
// untouched so an in-flight local UI state survives the update.
type TimeUpdatePayload struct {
	CanCheckIn           *bool `json:"can_check_in,omitempty"`
	CanCheckOut          *bool `json:"can_check_out,omitempty"`
	MinutesUntilCheckIn  *int  `json:"minutes_until_check_in,omitempty"`
	MinutesUntilCheckOut *int  `json:"minutes_until_check_out,omitempty"`
}
