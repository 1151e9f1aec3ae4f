package data

import (
	"context"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-batch-bot/internal/infra/feishu"
)

// replier is the subset of feishu.Client used by the message repository
type replier interface {
	Reply(ctx context.Context, messageID, text string) error
}

// feishuRepo implements the Feishu message repository
type feishuRepo struct {
	client replier
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client replier) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// Reply replies to a message with plain text
func (r *feishuRepo) Reply(ctx context.Context, msgID, text string) error {
	return r.client.Reply(ctx, msgID, text)
}

// MessageLink builds a deep link to a message
func (r *feishuRepo) MessageLink(msgID, chatID string) string {
	return feishu.MessageLink(msgID, chatID)
}
