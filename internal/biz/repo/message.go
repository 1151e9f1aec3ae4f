package repo

import "context"

// MessageRepo is the chat messaging interface
type MessageRepo interface {
	// Reply replies to a message with plain text
	Reply(ctx context.Context, msgID, text string) error

	// MessageLink builds a deep link to a message; chatID is optional
	MessageLink(msgID, chatID string) string
}
