package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

const messageLinkBase = "https://applink.feishu.cn/client/message/link"

// EventHandler receives message events from the long connection
type EventHandler func(ctx context.Context, event *larkim.P2MessageReceiveV1) error

// Client is the Feishu IM client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewClient creates a new Feishu IM client. An empty baseURL keeps the SDK default.
func NewClient(appID, appSecret, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogger(&sdkLogger{logger: logger.Sugar()}),
	}
	if timeout > 0 {
		opts = append(opts, lark.WithReqTimeout(timeout))
	}
	if baseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(baseURL))
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret, opts...),
		logger:    logger,
	}
}

// Bitable returns a Bitable client sharing this client's SDK config and token cache
func (c *Client) Bitable() *BitableClient {
	return NewBitableClient(c.larkCli)
}

// Reply replies to a message with plain text
func (c *Client) Reply(ctx context.Context, messageID, text string) error {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(TextMessageContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	c.logger.Debug("reply sent", zap.String("message_id", messageID))
	return nil
}

// Start connects to Feishu via WebSocket and delivers message events to handler.
// It blocks while the connection is served.
func (c *Client) Start(ctx context.Context, handler EventHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			return handler(ctx, event)
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
		larkws.WithLogger(&sdkLogger{logger: c.logger.Sugar()}),
	)

	c.logger.Info("starting websocket connection")
	return c.wsCli.Start(ctx)
}

// Stop disconnects the long connection
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// MessageLink builds a deep link to a message; chatID is optional
func MessageLink(messageID, chatID string) string {
	link := messageLinkBase + "?token=" + url.QueryEscape(messageID)
	if chatID != "" {
		link += "&chat_id=" + url.QueryEscape(chatID)
	}
	return link
}

// TextMessageContent encodes text as a text message content payload
func TextMessageContent(text string) string {
	content, _ := json.Marshal(map[string]string{"text": text})
	return string(content)
}

// ParseTextContent extracts the text of a text message content payload
func ParseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// sdkLogger routes SDK logs into zap
type sdkLogger struct {
	logger *zap.SugaredLogger
}

func (l *sdkLogger) Debug(ctx context.Context, args ...interface{}) { l.logger.Debug(args...) }
func (l *sdkLogger) Info(ctx context.Context, args ...interface{})  { l.logger.Info(args...) }
func (l *sdkLogger) Warn(ctx context.Context, args ...interface{})  { l.logger.Warn(args...) }
func (l *sdkLogger) Error(ctx context.Context, args ...interface{}) { l.logger.Error(args...) }
