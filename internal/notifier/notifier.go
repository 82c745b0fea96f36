// Package notifier renders analysis results and delivers them over email and Telegram.
package notifier

import "context"

// Message is one notification. HTML is used by email, Text by chat channels.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a notification over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
