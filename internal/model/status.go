package model

import "time"

// Subscriber states.
const (
	SubscriberConnecting = "connecting"
	SubscriberStreaming  = "streaming"
	SubscriberBackoff    = "backoff"
	SubscriberStopped    = "stopped"
)

// SubscriberStatus is the health view of one pool subscription.
type SubscriberStatus struct {
	Pool       string    `json:"pool"`
	State      string    `json:"state"`
	Reconnects int       `json:"reconnects"`
	Updates    uint64    `json:"updates"`
	LastError  string    `json:"last_error,omitempty"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}
