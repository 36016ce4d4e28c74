package ports

import "time"

// Notification is a transient user-facing message.
type Notification struct {
	Headline string
	Text     string
	Color    string
	Icon     string
	Timeout  time.Duration
}

// Notifier publishes notifications to whatever surface renders them.
type Notifier interface {
	Publish(n Notification)
}
