package domain

import "time"

// Sender types reported by Feishu
const (
	SenderTypeUser = "user"
	SenderTypeApp  = "app"
)

// InboundMessage is a received chat message, built per event and never persisted
type InboundMessage struct {
	MessageID  string
	ChatID     string
	CreateTime int64 // milliseconds since epoch, 0 if unknown
	Text       string
	MsgType    string
	SenderType string
}

// IsFromApp checks if the message was sent by a bot/app (including ourselves)
func (m *InboundMessage) IsFromApp() bool {
	return m.SenderType == SenderTypeApp
}

// Age returns how long ago the message was created. Unknown create times report zero.
func (m *InboundMessage) Age(now time.Time) time.Duration {
	if m.CreateTime <= 0 {
		return 0
	}
	return now.Sub(time.UnixMilli(m.CreateTime))
}
