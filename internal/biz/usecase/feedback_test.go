package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

// Mock implementations

type mockTableRepo struct {
	mu        sync.Mutex
	records   map[string][]domain.Record // "project/batch" -> records
	fields    map[string]string          // record id -> field value
	failIDs   map[string]bool
	searched  []string
	comments  map[string][]string
	appended  map[string][]string
	searchErr bool
}

func newMockTableRepo() *mockTableRepo {
	return &mockTableRepo{
		records:  make(map[string][]domain.Record),
		fields:   make(map[string]string),
		failIDs:  make(map[string]bool),
		comments: make(map[string][]string),
		appended: make(map[string][]string),
	}
}

func (m *mockTableRepo) put(project, batch string, ids ...string) {
	for _, id := range ids {
		m.records[project+"/"+batch] = append(m.records[project+"/"+batch], domain.Record{RecordID: id})
	}
}

func (m *mockTableRepo) SearchByBatch(ctx context.Context, project *domain.Project, batch string) []domain.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searched = append(m.searched, project.Name)
	if m.searchErr {
		return nil
	}
	return m.records[project.Name+"/"+batch]
}

func (m *mockTableRepo) GetField(ctx context.Context, project *domain.Project, recordID, field string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[recordID]
}

func (m *mockTableRepo) AppendField(ctx context.Context, project *domain.Project, recordID, field, fragment string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[recordID] {
		return false
	}
	m.appended[recordID] = append(m.appended[recordID], fragment)
	return true
}

func (m *mockTableRepo) AddComment(ctx context.Context, project *domain.Project, recordID, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[recordID] {
		return false
	}
	m.comments[recordID] = append(m.comments[recordID], text)
	return true
}

func (m *mockTableRepo) mutations() int {
	return len(m.comments) + len(m.appended)
}

type mockMessageRepo struct {
	mu       sync.Mutex
	replies  []string
	replyErr error
}

func (m *mockMessageRepo) Reply(ctx context.Context, msgID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, text)
	return m.replyErr
}

func (m *mockMessageRepo) MessageLink(msgID, chatID string) string {
	link := "https://applink.feishu.cn/client/message/link?token=" + msgID
	if chatID != "" {
		link += "&chat_id=" + chatID
	}
	return link
}

type mockAuditRepo struct {
	saved []*domain.FeedbackOutcome
	err   error
}

func (m *mockAuditRepo) Save(ctx context.Context, outcome *domain.FeedbackOutcome) error {
	m.saved = append(m.saved, outcome)
	return m.err
}

func (m *mockAuditRepo) Recent(ctx context.Context, limit int) ([]*domain.FeedbackOutcome, error) {
	return m.saved, nil
}

func (m *mockAuditRepo) Close() error { return nil }

type fixture struct {
	uc      *FeedbackUsecase
	table   *mockTableRepo
	message *mockMessageRepo
	audit   *mockAuditRepo
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	registry := domain.NewRegistry([]domain.Project{
		{Name: "货架", AppToken: "app1", TableID: "tbl1", ChatIDs: []string{"oc_shelf"}},
		{Name: "测试", AppToken: "app1", TableID: "tbl2", ChatIDs: []string{"oc_test"}},
	})
	table := newMockTableRepo()
	message := &mockMessageRepo{}
	audit := &mockAuditRepo{}
	extractor := domain.NewBatchExtractor("")
	recorder, err := NewFeedbackRecorder(mode, table, extractor.Keyword(), "需求反馈")
	require.NoError(t, err)

	uc := NewFeedbackUsecase(registry, extractor, table, message, recorder, audit, zap.NewNop())
	uc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return &fixture{uc: uc, table: table, message: message, audit: audit}
}

func msg(chatID, text string) *domain.InboundMessage {
	return &domain.InboundMessage{MessageID: "om_1", ChatID: chatID, Text: text, SenderType: domain.SenderTypeUser}
}

func TestFeedbackUsecase_NotClassified(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)

	handled := f.uc.Handle(context.Background(), msg("oc_shelf", "hello there"))

	require.False(t, handled)
	require.Empty(t, f.message.replies)
	require.Empty(t, f.table.searched)
	require.Empty(t, f.audit.saved)
}

func TestFeedbackUsecase_ResolvedProject_AllUpdated(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("货架", "BATCH-42", "rec1", "rec2")

	handled := f.uc.Handle(context.Background(), msg("oc_shelf", "【BATCH-42】货架物品需求反馈"))

	require.True(t, handled)
	require.Equal(t, []string{"货架"}, f.table.searched)
	require.Len(t, f.message.replies, 1)
	require.Contains(t, f.message.replies[0], "2/2")
	require.Contains(t, f.message.replies[0], "货架")
	require.Contains(t, f.message.replies[0], "BATCH-42")

	require.Len(t, f.table.comments["rec1"], 1)
	require.Contains(t, f.table.comments["rec1"][0], "token=om_1&chat_id=oc_shelf")
	require.True(t, strings.HasPrefix(f.table.comments["rec1"][0], "📬 收到物品需求反馈"))

	require.Len(t, f.audit.saved, 1)
	require.Equal(t, domain.FeedbackStatusUpdated, f.audit.saved[0].Status)
	require.Equal(t, 2, f.audit.saved[0].Success)
	require.Equal(t, 2, f.audit.saved[0].Total)
}

func TestFeedbackUsecase_ResolvedProject_PartialFailure(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("货架", "B1", "rec1", "rec2", "rec3")
	f.table.failIDs["rec2"] = true

	f.uc.Handle(context.Background(), msg("oc_shelf", "【B1】物品需求反馈"))

	require.Len(t, f.message.replies, 1)
	require.Contains(t, f.message.replies[0], "2/3")
	require.Len(t, f.table.comments, 2)
}

func TestFeedbackUsecase_ResolvedProject_NoRecords(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("测试", "B1", "rec9") // exists elsewhere, must not be searched

	f.uc.Handle(context.Background(), msg("oc_shelf", "【B1】物品需求反馈"))

	require.Equal(t, []string{"货架"}, f.table.searched)
	require.Equal(t, []string{"❌ 在「货架」中未找到批次「B1」"}, f.message.replies)
	require.Zero(t, f.table.mutations())
	require.Equal(t, domain.FeedbackStatusNotFound, f.audit.saved[0].Status)
}

func TestFeedbackUsecase_UnknownChat_SingleProject(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("测试", "B1", "rec9")

	f.uc.Handle(context.Background(), msg("oc_elsewhere", "【B1】物品需求反馈"))

	require.Equal(t, []string{"货架", "测试"}, f.table.searched)
	require.Len(t, f.message.replies, 1)
	require.Contains(t, f.message.replies[0], "1/1")
	require.Contains(t, f.message.replies[0], "测试")
	require.Len(t, f.table.comments["rec9"], 1)
}

func TestFeedbackUsecase_UnknownChat_NotFound(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)

	f.uc.Handle(context.Background(), msg("oc_elsewhere", "【B1】物品需求反馈"))

	require.Equal(t, []string{"❌ 未找到批次「B1」"}, f.message.replies)
	require.Equal(t, domain.FeedbackStatusUnresolved, f.audit.saved[0].Status)
}

func TestFeedbackUsecase_UnknownChat_Ambiguous(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("货架", "B1", "rec1", "rec2")
	f.table.put("测试", "B1", "rec9")

	f.uc.Handle(context.Background(), msg("oc_elsewhere", "【B1】物品需求反馈"))

	require.Len(t, f.message.replies, 1)
	reply := f.message.replies[0]
	require.Contains(t, reply, "找到 2 个项目")
	require.Contains(t, reply, "  • 货架 (2条)")
	require.Contains(t, reply, "  • 测试 (1条)")
	require.Zero(t, f.table.mutations())
	require.Equal(t, domain.FeedbackStatusAmbiguous, f.audit.saved[0].Status)
}

func TestFeedbackUsecase_SearchFailureLooksLikeNotFound(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("货架", "B1", "rec1")
	f.table.searchErr = true

	f.uc.Handle(context.Background(), msg("oc_shelf", "【B1】物品需求反馈"))

	require.Equal(t, []string{"❌ 在「货架」中未找到批次「B1」"}, f.message.replies)
}

func TestFeedbackUsecase_FieldMode(t *testing.T) {
	f := newFixture(t, FeedbackModeField)
	f.table.put("货架", "B1", "rec1")

	m := msg("oc_shelf", "【B1】物品需求反馈")
	m.CreateTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local).UnixMilli()
	f.uc.Handle(context.Background(), m)

	require.Equal(t, []string{"2026-03-01 08:00 https://applink.feishu.cn/client/message/link?token=om_1&chat_id=oc_shelf"}, f.table.appended["rec1"])
	require.Empty(t, f.table.comments)
	require.Contains(t, f.message.replies[0], "已将反馈链接写入")
	require.Contains(t, f.message.replies[0], "1/1")
}

func TestFeedbackUsecase_ReplyAndAuditFailuresAreTolerated(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("货架", "B1", "rec1")
	f.message.replyErr = errors.New("network down")
	f.audit.err = errors.New("disk full")

	require.True(t, f.uc.Handle(context.Background(), msg("oc_shelf", "【B1】物品需求反馈")))
	require.Len(t, f.table.comments["rec1"], 1)
}

func TestFeedbackUsecase_NilAudit(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.uc.auditRepo = nil
	f.table.put("货架", "B1", "rec1")

	require.True(t, f.uc.Handle(context.Background(), msg("oc_shelf", "【B1】物品需求反馈")))
	require.Len(t, f.message.replies, 1)
}

func TestFeedbackUsecase_ApplyToBatch(t *testing.T) {
	f := newFixture(t, FeedbackModeComment)
	f.table.put("测试", "B1", "rec1", "rec2")

	info := &domain.FeedbackInfo{MessageLink: "manual"}
	success, total, err := f.uc.ApplyToBatch(context.Background(), "测试", "B1", info)
	require.NoError(t, err)
	require.Equal(t, 2, success)
	require.Equal(t, 2, total)
	require.Equal(t, &domain.FeedbackInfo{MessageLink: "manual"}, info)

	_, _, err = f.uc.ApplyToBatch(context.Background(), "missing", "B1", &domain.FeedbackInfo{})
	require.Error(t, err)

	success, total, err = f.uc.ApplyToBatch(context.Background(), "货架", "B1", &domain.FeedbackInfo{})
	require.NoError(t, err)
	require.Zero(t, success)
	require.Zero(t, total)
}

func TestNewFeedbackRecorder(t *testing.T) {
	table := newMockTableRepo()

	r, err := NewFeedbackRecorder("", table, "物品需求反馈", "")
	require.NoError(t, err)
	require.IsType(t, &CommentRecorder{}, r)

	r, err = NewFeedbackRecorder(FeedbackModeField, table, "物品需求反馈", "需求反馈")
	require.NoError(t, err)
	require.IsType(t, &FieldRecorder{}, r)

	_, err = NewFeedbackRecorder(FeedbackModeField, table, "物品需求反馈", "")
	require.Error(t, err)

	_, err = NewFeedbackRecorder("carrier-pigeon", table, "物品需求反馈", "")
	require.Error(t, err)
}
