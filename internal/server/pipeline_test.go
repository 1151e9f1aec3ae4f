package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

type mockHandler struct {
	handled []*domain.InboundMessage
	result  bool
	panics  bool
}

func (m *mockHandler) Handle(ctx context.Context, msg *domain.InboundMessage) bool {
	if m.panics {
		panic("boom")
	}
	m.handled = append(m.handled, msg)
	return m.result
}

var pipelineNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(h MessageHandler) *Pipeline {
	p := NewPipeline(NewClearingSet(DefaultDedupSize), h, 0, zap.NewNop())
	p.now = func() time.Time { return pipelineNow }
	return p
}

func freshMessage(id string) *domain.InboundMessage {
	return &domain.InboundMessage{
		MessageID:  id,
		ChatID:     "oc_1",
		CreateTime: pipelineNow.Add(-time.Minute).UnixMilli(),
		Text:       "【B1】物品需求反馈",
		SenderType: domain.SenderTypeUser,
	}
}

func TestPipeline_Dispatches(t *testing.T) {
	h := &mockHandler{result: true}
	p := newTestPipeline(h)

	require.Equal(t, VerdictDispatched, p.Process(context.Background(), EventTypeMessageReceive, freshMessage("om_1")))
	require.Len(t, h.handled, 1)

	h.result = false
	require.Equal(t, VerdictIgnored, p.Process(context.Background(), EventTypeMessageReceive, freshMessage("om_2")))
}

func TestPipeline_DuplicateDropped(t *testing.T) {
	h := &mockHandler{result: true}
	p := newTestPipeline(h)

	require.Equal(t, VerdictDispatched, p.Process(context.Background(), EventTypeMessageReceive, freshMessage("om_1")))
	require.Equal(t, VerdictDuplicate, p.Process(context.Background(), EventTypeMessageReceive, freshMessage("om_1")))
	require.Len(t, h.handled, 1)
}

func TestPipeline_Filters(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		msg       func() *domain.InboundMessage
		want      Verdict
	}{
		{"other event type", "im.chat.member.bot.added_v1", func() *domain.InboundMessage { return freshMessage("om_1") }, VerdictEventType},
		{"nil message", EventTypeMessageReceive, func() *domain.InboundMessage { return nil }, VerdictEmpty},
		{"stale", EventTypeMessageReceive, func() *domain.InboundMessage {
			m := freshMessage("om_1")
			m.CreateTime = pipelineNow.Add(-301 * time.Second).UnixMilli()
			return m
		}, VerdictStale},
		{"exactly at window", EventTypeMessageReceive, func() *domain.InboundMessage {
			m := freshMessage("om_1")
			m.CreateTime = pipelineNow.Add(-300 * time.Second).UnixMilli()
			return m
		}, VerdictDispatched},
		{"unknown create time", EventTypeMessageReceive, func() *domain.InboundMessage {
			m := freshMessage("om_1")
			m.CreateTime = 0
			return m
		}, VerdictDispatched},
		{"from app", EventTypeMessageReceive, func() *domain.InboundMessage {
			m := freshMessage("om_1")
			m.SenderType = domain.SenderTypeApp
			return m
		}, VerdictFromApp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mockHandler{result: true}
			p := newTestPipeline(h)
			require.Equal(t, tt.want, p.Process(context.Background(), tt.eventType, tt.msg()))
		})
	}
}

func TestPipeline_AppMessageStillRecordedInDedup(t *testing.T) {
	h := &mockHandler{result: true}
	p := newTestPipeline(h)

	m := freshMessage("om_1")
	m.SenderType = domain.SenderTypeApp
	require.Equal(t, VerdictFromApp, p.Process(context.Background(), EventTypeMessageReceive, m))
	require.Equal(t, VerdictDuplicate, p.Process(context.Background(), EventTypeMessageReceive, m))
}

func TestPipeline_RecoversPanic(t *testing.T) {
	p := newTestPipeline(&mockHandler{panics: true})
	require.Equal(t, VerdictPanic, p.Process(context.Background(), EventTypeMessageReceive, freshMessage("om_1")))
}

func TestMessageFromEvent(t *testing.T) {
	payload := `{
		"sender": {"sender_id": {"open_id": "ou_1"}, "sender_type": "user", "tenant_key": "tk"},
		"message": {
			"message_id": "om_42",
			"chat_id": "oc_8433370f765f6c1134e14c71c46615a9",
			"chat_type": "group",
			"create_time": "1772366400000",
			"message_type": "text",
			"content": "{\"text\":\"【BATCH-42】货架物品需求反馈\"}"
		}
	}`
	var data larkim.P2MessageReceiveV1Data
	require.NoError(t, json.Unmarshal([]byte(payload), &data))

	msg := MessageFromEvent(&data)
	require.NotNil(t, msg)
	require.Equal(t, "om_42", msg.MessageID)
	require.Equal(t, "oc_8433370f765f6c1134e14c71c46615a9", msg.ChatID)
	require.Equal(t, int64(1772366400000), msg.CreateTime)
	require.Equal(t, "【BATCH-42】货架物品需求反馈", msg.Text)
	require.Equal(t, "text", msg.MsgType)
	require.Equal(t, domain.SenderTypeUser, msg.SenderType)

	require.Nil(t, MessageFromEvent(nil))
	require.Nil(t, MessageFromEvent(&larkim.P2MessageReceiveV1Data{}))
}
