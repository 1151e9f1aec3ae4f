package usecase

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
)

// Feedback modes selectable by configuration
const (
	FeedbackModeComment = "comment"
	FeedbackModeField   = "field"
)

// CommentRecorder posts the feedback marker as a record comment
type CommentRecorder struct {
	tableRepo repo.TableRepo
	keyword   string
}

// NewCommentRecorder creates a comment-based recorder
func NewCommentRecorder(tableRepo repo.TableRepo, keyword string) *CommentRecorder {
	return &CommentRecorder{tableRepo: tableRepo, keyword: keyword}
}

// Record adds a comment carrying the message link
func (r *CommentRecorder) Record(ctx context.Context, project *domain.Project, recordID string, info *domain.FeedbackInfo) bool {
	text := fmt.Sprintf("📬 收到%s\n🔗 消息链接: %s", r.keyword, info.MessageLink)
	return r.tableRepo.AddComment(ctx, project, recordID, text)
}

// Verb implements repo.FeedbackRecorder
func (r *CommentRecorder) Verb() string {
	return "已将反馈链接评论到"
}

// FieldRecorder appends the feedback marker to a text field of the record
type FieldRecorder struct {
	tableRepo repo.TableRepo
	field     string
}

// NewFieldRecorder creates a field-append recorder writing into field
func NewFieldRecorder(tableRepo repo.TableRepo, field string) *FieldRecorder {
	return &FieldRecorder{tableRepo: tableRepo, field: field}
}

// Record appends "<time> <link>" on a new line of the field
func (r *FieldRecorder) Record(ctx context.Context, project *domain.Project, recordID string, info *domain.FeedbackInfo) bool {
	fragment := fmt.Sprintf("%s %s", info.ReceivedAt.Format("2006-01-02 15:04"), info.MessageLink)
	return r.tableRepo.AppendField(ctx, project, recordID, r.field, fragment)
}

// Verb implements repo.FeedbackRecorder
func (r *FieldRecorder) Verb() string {
	return "已将反馈链接写入"
}

// NewFeedbackRecorder selects a recorder by mode
func NewFeedbackRecorder(mode string, tableRepo repo.TableRepo, keyword, field string) (repo.FeedbackRecorder, error) {
	switch mode {
	case "", FeedbackModeComment:
		return NewCommentRecorder(tableRepo, keyword), nil
	case FeedbackModeField:
		if field == "" {
			return nil, fmt.Errorf("feedback mode %q needs a field name", mode)
		}
		return NewFieldRecorder(tableRepo, field), nil
	default:
		return nil, fmt.Errorf("unknown feedback mode %q", mode)
	}
}
