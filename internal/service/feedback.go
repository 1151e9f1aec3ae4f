package service

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-batch-bot/internal/conf"
	"github.com/DevRickLin/feishu-batch-bot/internal/data"
	"github.com/DevRickLin/feishu-batch-bot/internal/infra/feishu"
)

// FeedbackService is the wired feedback stack shared by the bot and the MCP server
type FeedbackService struct {
	FeishuClient *feishu.Client
	Repos        *data.Repositories
	Feedback     *usecase.FeedbackUsecase
}

// NewFeedbackService builds clients, repositories and the feedback usecase from cfg
func NewFeedbackService(cfg *conf.Config, logger *zap.Logger) (*FeedbackService, error) {
	projects, err := conf.LoadProjects(cfg.ProjectsPath)
	if err != nil {
		return nil, err
	}
	registry := domain.NewRegistry(projects)
	for chatID, shadowed := range registry.ShadowedChats() {
		logger.Warn("chat id bound to several projects; the first one wins",
			zap.String("chat_id", chatID), zap.Strings("shadowed", shadowed))
	}
	logger.Info("projects loaded", zap.Int("count", registry.Len()), zap.String("source", lo.Ternary(cfg.ProjectsPath == "", "built-in", cfg.ProjectsPath)))

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Feishu.BaseURL,
		cfg.Feishu.RequestTimeout, logger.Named("feishu"))
	bitableClient := feishuClient.Bitable()

	repos, err := data.NewRepositories(feishuClient, bitableClient, cfg.Feedback.BatchField, cfg.AuditDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create repositories: %w", err)
	}

	extractor := domain.NewBatchExtractor(cfg.Feedback.Keyword)
	recorder, err := usecase.NewFeedbackRecorder(cfg.Feedback.Mode, repos.Table, extractor.Keyword(), cfg.Feedback.Field)
	if err != nil {
		repos.Close()
		return nil, &conf.ConfigError{Field: "FEEDBACK_MODE", Message: err.Error()}
	}

	feedbackUC := usecase.NewFeedbackUsecase(registry, extractor, repos.Table, repos.Message, recorder, repos.Audit, logger.Named("feedback"))

	return &FeedbackService{
		FeishuClient: feishuClient,
		Repos:        repos,
		Feedback:     feedbackUC,
	}, nil
}

// Close releases resources
func (s *FeedbackService) Close() error {
	return s.Repos.Close()
}

