package distribution

import "time"

// Envelope wraps one outgoing item with its topic and publish time.
type Envelope struct {
	Topic       Topic     `json:"topic"`
	PublishedAt time.Time `json:"published_at"`
	Payload     any       `json:"payload"`
}
