package server

import (
	"context"
	"strconv"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/infra/feishu"
)

// FeishuServer feeds long-connection message events into the pipeline
type FeishuServer struct {
	feishuClient *feishu.Client
	pipeline     *Pipeline
	logger       *zap.Logger
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient *feishu.Client, pipeline *Pipeline, logger *zap.Logger) *FeishuServer {
	return &FeishuServer{
		feishuClient: feishuClient,
		pipeline:     pipeline,
		logger:       logger,
	}
}

// Start opens the long connection; it blocks until ctx is done
func (s *FeishuServer) Start(ctx context.Context) error {
	return s.feishuClient.Start(ctx, s.HandleEvent)
}

// Stop closes the long connection
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// HandleEvent returns immediately so the SDK can ack; processing continues in the background
func (s *FeishuServer) HandleEvent(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
	if event == nil {
		return nil
	}
	msg := MessageFromEvent(event.Event)
	go s.pipeline.Process(context.Background(), EventTypeMessageReceive, msg)
	return nil
}

// MessageFromEvent converts a message receive payload into an InboundMessage.
// It returns nil when the payload has no message.
func MessageFromEvent(data *larkim.P2MessageReceiveV1Data) *domain.InboundMessage {
	if data == nil || data.Message == nil {
		return nil
	}
	raw := data.Message

	msg := &domain.InboundMessage{
		MessageID: deref(raw.MessageId),
		ChatID:    deref(raw.ChatId),
		MsgType:   deref(raw.MessageType),
		Text:      feishu.ParseTextContent(deref(raw.Content)),
	}

	// create_time is a millisecond timestamp string
	if ts, err := strconv.ParseInt(deref(raw.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}

	if data.Sender != nil {
		msg.SenderType = deref(data.Sender.SenderType)
	}
	return msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
