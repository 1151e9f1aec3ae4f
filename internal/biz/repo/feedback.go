package repo

import (
	"context"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

// FeedbackRecorder writes a feedback marker onto one record
type FeedbackRecorder interface {
	// Record writes the marker and reports success
	Record(ctx context.Context, project *domain.Project, recordID string, info *domain.FeedbackInfo) bool

	// Verb is the reply phrase describing what was done, e.g. "已将反馈链接评论到"
	Verb() string
}

// AuditRepo persists orchestration outcomes
type AuditRepo interface {
	Save(ctx context.Context, outcome *domain.FeedbackOutcome) error
	Recent(ctx context.Context, limit int) ([]*domain.FeedbackOutcome, error)
	Close() error
}
