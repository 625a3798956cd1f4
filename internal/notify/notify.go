// Package notify delivers result text to users through the chat transport.
package notify

import "context"

// Notifier pushes a text message to the user identified by their
// external chat id.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Nop discards notifications; used in tests and offline runs.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string) error { return nil }
