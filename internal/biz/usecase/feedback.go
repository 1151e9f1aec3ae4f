package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
)

// FeedbackUsecase turns a batch feedback message into record updates and a reply
type FeedbackUsecase struct {
	registry    *domain.Registry
	extractor   *domain.BatchExtractor
	tableRepo   repo.TableRepo
	messageRepo repo.MessageRepo
	recorder    repo.FeedbackRecorder
	auditRepo   repo.AuditRepo // optional
	logger      *zap.Logger
	now         func() time.Time
}

// NewFeedbackUsecase creates a new feedback usecase; auditRepo may be nil
func NewFeedbackUsecase(
	registry *domain.Registry,
	extractor *domain.BatchExtractor,
	tableRepo repo.TableRepo,
	messageRepo repo.MessageRepo,
	recorder repo.FeedbackRecorder,
	auditRepo repo.AuditRepo,
	logger *zap.Logger,
) *FeedbackUsecase {
	return &FeedbackUsecase{
		registry:    registry,
		extractor:   extractor,
		tableRepo:   tableRepo,
		messageRepo: messageRepo,
		recorder:    recorder,
		auditRepo:   auditRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// Registry returns the project registry
func (uc *FeedbackUsecase) Registry() *domain.Registry {
	return uc.registry
}

// MessageLink builds the deep link recorded for a message
func (uc *FeedbackUsecase) MessageLink(msgID, chatID string) string {
	return uc.messageRepo.MessageLink(msgID, chatID)
}

// Handle processes one inbound message. It returns false when the text is not a
// batch feedback message; in that case nothing is searched, written or replied.
func (uc *FeedbackUsecase) Handle(ctx context.Context, msg *domain.InboundMessage) bool {
	batch, ok := uc.extractor.Extract(msg.Text)
	if !ok {
		uc.logger.Debug("not a batch feedback message", zap.String("message_id", msg.MessageID))
		return false
	}

	info := uc.feedbackInfo(msg, batch)
	log := uc.logger.With(
		zap.String("message_id", msg.MessageID),
		zap.String("chat_id", msg.ChatID),
		zap.String("batch", batch),
	)
	log.Info("batch feedback received", zap.String("link", info.MessageLink))

	outcome := &domain.FeedbackOutcome{
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		Batch:     batch,
	}

	if project, found := uc.registry.FindByChat(msg.ChatID); found {
		log.Info("project resolved by chat", zap.String("project", project.Name))
		outcome.Project = project.Name

		records := uc.tableRepo.SearchByBatch(ctx, project, batch)
		if len(records) == 0 {
			outcome.Status = domain.FeedbackStatusNotFound
			uc.finish(ctx, msg, outcome, fmt.Sprintf("❌ 在「%s」中未找到批次「%s」", project.Name, batch))
			return true
		}
		uc.applyAndReply(ctx, msg, outcome, project, records, info)
		return true
	}

	log.Info("chat not bound to a project, searching all projects")
	matches := uc.SearchAll(ctx, batch)

	switch len(matches) {
	case 0:
		outcome.Status = domain.FeedbackStatusUnresolved
		uc.finish(ctx, msg, outcome, fmt.Sprintf("❌ 未找到批次「%s」", batch))
	case 1:
		project := matches[0].Project
		outcome.Project = project.Name
		uc.applyAndReply(ctx, msg, outcome, &project, matches[0].Records, info)
	default:
		lines := make([]string, 0, len(matches))
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			lines = append(lines, fmt.Sprintf("  • %s (%d条)", m.Project.Name, len(m.Records)))
			names = append(names, m.Project.Name)
		}
		outcome.Status = domain.FeedbackStatusAmbiguous
		outcome.Project = strings.Join(names, ",")
		uc.finish(ctx, msg, outcome, fmt.Sprintf("⚠️ 找到 %d 个项目包含批次「%s」：\n%s\n\n请联系管理员配置群ID关联",
			len(matches), batch, strings.Join(lines, "\n")))
	}
	return true
}

// SearchProject returns the records of batch in one project
func (uc *FeedbackUsecase) SearchProject(ctx context.Context, project *domain.Project, batch string) []domain.Record {
	return uc.tableRepo.SearchByBatch(ctx, project, batch)
}

// SearchAll searches every registered project for batch and returns the projects with hits
func (uc *FeedbackUsecase) SearchAll(ctx context.Context, batch string) []domain.ProjectMatch {
	var matches []domain.ProjectMatch
	for _, project := range uc.registry.All() {
		records := uc.tableRepo.SearchByBatch(ctx, &project, batch)
		if len(records) > 0 {
			matches = append(matches, domain.ProjectMatch{Project: project, Records: records})
		}
	}
	return matches
}

// Apply records feedback on every record and returns the success count.
// Failures are not rolled back.
func (uc *FeedbackUsecase) Apply(ctx context.Context, project *domain.Project, records []domain.Record, info *domain.FeedbackInfo) int {
	success := 0
	for _, record := range records {
		if uc.recorder.Record(ctx, project, record.RecordID, info) {
			success++
			uc.logger.Debug("feedback recorded", zap.String("project", project.Name), zap.String("record_id", record.RecordID))
		} else {
			uc.logger.Warn("feedback not recorded", zap.String("project", project.Name), zap.String("record_id", record.RecordID))
		}
	}
	return success
}

// ApplyToBatch records feedback on every record of batch in the named project.
// It is the entry point for callers that already know the project.
func (uc *FeedbackUsecase) ApplyToBatch(ctx context.Context, projectName, batch string, info *domain.FeedbackInfo) (success, total int, err error) {
	project, ok := uc.registry.Find(projectName)
	if !ok {
		return 0, 0, fmt.Errorf("unknown project %q", projectName)
	}
	records := uc.tableRepo.SearchByBatch(ctx, project, batch)
	if len(records) == 0 {
		return 0, 0, nil
	}
	filled := *info
	if filled.Batch == "" {
		filled.Batch = batch
	}
	if filled.ReceivedAt.IsZero() {
		filled.ReceivedAt = uc.now()
	}
	return uc.Apply(ctx, project, records, &filled), len(records), nil
}

// SummaryText formats the final reply
func (uc *FeedbackUsecase) SummaryText(project, batch string, success, total int) string {
	return fmt.Sprintf("✅ %s「%s」批次「%s」的 %d/%d 条记录", uc.recorder.Verb(), project, batch, success, total)
}

func (uc *FeedbackUsecase) applyAndReply(
	ctx context.Context,
	msg *domain.InboundMessage,
	outcome *domain.FeedbackOutcome,
	project *domain.Project,
	records []domain.Record,
	info *domain.FeedbackInfo,
) {
	success := uc.Apply(ctx, project, records, info)
	outcome.Status = domain.FeedbackStatusUpdated
	outcome.Success = success
	outcome.Total = len(records)
	uc.finish(ctx, msg, outcome, uc.SummaryText(project.Name, info.Batch, success, len(records)))
}

// finish sends the reply (fire-and-forget) and writes the audit entry
func (uc *FeedbackUsecase) finish(ctx context.Context, msg *domain.InboundMessage, outcome *domain.FeedbackOutcome, reply string) {
	if err := uc.messageRepo.Reply(ctx, msg.MessageID, reply); err != nil {
		uc.logger.Warn("reply failed", zap.String("message_id", msg.MessageID), zap.Error(err))
	}

	outcome.Reply = reply
	outcome.CreatedAt = uc.now()
	if uc.auditRepo == nil {
		return
	}
	if err := uc.auditRepo.Save(ctx, outcome); err != nil {
		uc.logger.Warn("audit save failed", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
}

func (uc *FeedbackUsecase) feedbackInfo(msg *domain.InboundMessage, batch string) *domain.FeedbackInfo {
	receivedAt := uc.now()
	if msg.CreateTime > 0 {
		receivedAt = time.UnixMilli(msg.CreateTime)
	}
	return &domain.FeedbackInfo{
		MessageID:   msg.MessageID,
		ChatID:      msg.ChatID,
		Batch:       batch,
		MessageLink: uc.messageRepo.MessageLink(msg.MessageID, msg.ChatID),
		ReceivedAt:  receivedAt,
	}
}
