// Package notify delivers best-effort Telegram messages to users and the
// admin deals channel. Delivery failures are logged and never surfaced to
// callers; a dropped message must not fail a reservation.
package notify

import "context"

// Notifier sends a text message to a user by telegram id. A zero recipient
// means the user never attached Telegram and the message is skipped.
type Notifier interface {
	Notify(ctx context.Context, telegramID int64, text string)
	// NotifyAdmins posts to the shared deals channel.
	NotifyAdmins(ctx context.Context, text string)
}

// Noop discards all messages. Used in tests and when no bot token is set.
type Noop struct{}

func (Noop) Notify(context.Context, int64, string) {}

func (Noop) NotifyAdmins(context.Context, string) {}
