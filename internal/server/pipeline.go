package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

// EventTypeMessageReceive is the only event type acted on
const EventTypeMessageReceive = "im.message.receive_v1"

// DefaultStaleAfter is the age past which events are dropped
const DefaultStaleAfter = 5 * time.Minute

// Verdict is what the pipeline did with an event
type Verdict string

const (
	VerdictDispatched Verdict = "dispatched"
	VerdictIgnored    Verdict = "ignored" // dispatched but not a feedback message
	VerdictEventType  Verdict = "wrong_event_type"
	VerdictEmpty      Verdict = "empty"
	VerdictStale      Verdict = "stale"
	VerdictDuplicate  Verdict = "duplicate"
	VerdictFromApp    Verdict = "from_app"
	VerdictPanic      Verdict = "panic"
)

// MessageHandler handles a message that passed every filter
type MessageHandler interface {
	Handle(ctx context.Context, msg *domain.InboundMessage) bool
}

// Pipeline filters inbound events before dispatching them
type Pipeline struct {
	dedup      Deduper
	handler    MessageHandler
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline creates an event pipeline
func NewPipeline(dedup Deduper, handler MessageHandler, staleAfter time.Duration, logger *zap.Logger) *Pipeline {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Pipeline{
		dedup:      dedup,
		handler:    handler,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs the event type, staleness, dedup and sender filters, then dispatches.
// Panics in the handler are recovered.
func (p *Pipeline) Process(ctx context.Context, eventType string, msg *domain.InboundMessage) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panic", zap.Any("panic", r), zap.Stack("stack"))
			verdict = VerdictPanic
		}
	}()

	if eventType != EventTypeMessageReceive {
		p.logger.Debug("event ignored", zap.String("event_type", eventType))
		return VerdictEventType
	}
	if msg == nil || msg.MessageID == "" {
		p.logger.Warn("event without message")
		return VerdictEmpty
	}

	log := p.logger.With(zap.String("message_id", msg.MessageID), zap.String("chat_id", msg.ChatID))

	if age := msg.Age(p.now()); age > p.staleAfter {
		log.Info("stale message dropped", zap.Duration("age", age))
		return VerdictStale
	}
	if p.dedup.Seen(msg.MessageID) {
		log.Info("duplicate message dropped")
		return VerdictDuplicate
	}
	if msg.IsFromApp() {
		log.Debug("app message dropped")
		return VerdictFromApp
	}

	if !p.handler.Handle(ctx, msg) {
		return VerdictIgnored
	}
	return VerdictDispatched
}
