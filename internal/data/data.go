package data

import (
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-batch-bot/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Table   repo.TableRepo
	Message repo.MessageRepo
	Audit   repo.AuditRepo // nil when the audit log is disabled
}

// NewRepositories creates all repositories. An empty auditDBPath disables the audit log.
func NewRepositories(
	feishuClient *feishu.Client,
	bitableClient *feishu.BitableClient,
	batchField string,
	auditDBPath string,
	logger *zap.Logger,
) (*Repositories, error) {
	repos := &Repositories{
		Table:   NewTableRepo(bitableClient, batchField, logger.Named("table")),
		Message: NewFeishuRepo(feishuClient),
	}

	if auditDBPath != "" {
		auditRepo, err := NewAuditRepo(auditDBPath)
		if err != nil {
			return nil, err
		}
		repos.Audit = auditRepo
		logger.Info("audit log enabled", zap.String("path", auditDBPath))
	}
	return repos, nil
}

// Close releases repository resources
func (r *Repositories) Close() error {
	if r.Audit != nil {
		return r.Audit.Close()
	}
	return nil
}
