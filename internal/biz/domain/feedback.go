package domain

import "time"

// FeedbackInfo is what gets written back onto a record
type FeedbackInfo struct {
	MessageID   string
	ChatID      string
	Batch       string
	MessageLink string
	ReceivedAt  time.Time
}

// FeedbackStatus is the terminal state of one orchestration pass
type FeedbackStatus string

const (
	FeedbackStatusUpdated    FeedbackStatus = "updated"
	FeedbackStatusNotFound   FeedbackStatus = "not_found"
	FeedbackStatusAmbiguous  FeedbackStatus = "ambiguous"
	FeedbackStatusUnresolved FeedbackStatus = "unresolved"
)

// FeedbackOutcome is the audit entry for a classified message
type FeedbackOutcome struct {
	MessageID string         `json:"message_id"`
	ChatID    string         `json:"chat_id"`
	Batch     string         `json:"batch"`
	Project   string         `json:"project"`
	Status    FeedbackStatus `json:"status"`
	Success   int            `json:"success"`
	Total     int            `json:"total"`
	Reply     string         `json:"reply"`
	CreatedAt time.Time      `json:"created_at"`
}
