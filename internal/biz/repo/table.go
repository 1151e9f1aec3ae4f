package repo

import (
	"context"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

// TableRepo is the Bitable repository interface.
// Implementations log remote failures and degrade to empty/false results;
// callers cannot tell "no records" from "search failed".
type TableRepo interface {
	// SearchByBatch returns records whose batch field equals batch
	SearchByBatch(ctx context.Context, project *domain.Project, batch string) []domain.Record

	// GetField returns the current value of a field as text, "" on failure
	GetField(ctx context.Context, project *domain.Project, recordID, field string) string

	// AppendField appends fragment on a new line to the current field value
	AppendField(ctx context.Context, project *domain.Project, recordID, field, fragment string) bool

	// AddComment posts a plain-text comment on a record
	AddComment(ctx context.Context, project *domain.Project, recordID, text string) bool
}
