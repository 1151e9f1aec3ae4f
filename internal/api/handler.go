package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-batch-bot/internal/server"
)

const (
	statusMessage   = "🤖 批次反馈机器人运行中"
	maxWebhookBytes = 1 << 20
)

// EventProcessor runs inbound events through the filter pipeline
type EventProcessor interface {
	Process(ctx context.Context, eventType string, msg *domain.InboundMessage) server.Verdict
}

// Options configures the HTTP server
type Options struct {
	Addr              string
	WebhookPath       string
	VerificationToken string
	// DisableWebhook leaves only the status routes (long connection mode)
	DisableWebhook bool
}

// Server serves the Feishu webhook and status endpoints
type Server struct {
	pipeline  EventProcessor
	registry  *domain.Registry
	auditRepo repo.AuditRepo // optional
	opts      Options
	logger    *zap.Logger

	server *http.Server
}

// ProjectSummary is the public view of a project on the status endpoint
type ProjectSummary struct {
	Name    string   `json:"name"`
	ChatIDs []string `json:"chat_ids"`
}

// StatusResponse is returned by GET /
type StatusResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Projects []ProjectSummary `json:"projects"`
}

// webhookEnvelope holds the callback fields read before the event is decoded
type webhookEnvelope struct {
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
	Header    *struct {
		EventType string `json:"event_type"`
		Token     string `json:"token"`
	} `json:"header"`
	Event json.RawMessage `json:"event"`
}

// NewServer creates a new API server; auditRepo may be nil
func NewServer(pipeline EventProcessor, registry *domain.Registry, auditRepo repo.AuditRepo, opts Options, logger *zap.Logger) *Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/webhook"
	}
	return &Server{
		pipeline:  pipeline,
		registry:  registry,
		auditRepo: auditRepo,
		opts:      opts,
		logger:    logger,
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if !s.opts.DisableWebhook {
		mux.HandleFunc("POST "+s.opts.WebhookPath, s.handleWebhook)
	}
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("GET /api/feedback", s.handleFeedback)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server; it blocks until the server stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
	}

	s.logger.Info("starting http server", zap.String("addr", s.opts.Addr), zap.String("webhook", s.opts.WebhookPath))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleWebhook answers URL verification and acknowledges every other callback
// with {"code":0}, whatever happens while processing it
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("webhook panic", zap.Any("panic", rec), zap.Stack("stack"))
			s.writeAck(w)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.logger.Warn("read webhook body failed", zap.Error(err))
		s.writeAck(w)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.logger.Warn("malformed webhook payload", zap.Error(err))
		s.writeAck(w)
		return
	}

	if envelope.Challenge != "" {
		s.logger.Info("url verification")
		s.writeJSON(w, map[string]string{"challenge": envelope.Challenge})
		return
	}

	eventType, token := "", envelope.Token
	if envelope.Header != nil {
		eventType = envelope.Header.EventType
		if envelope.Header.Token != "" {
			token = envelope.Header.Token
		}
	}

	if s.opts.VerificationToken != "" && token != s.opts.VerificationToken {
		s.logger.Warn("verification token mismatch", zap.String("event_type", eventType))
		s.writeAck(w)
		return
	}

	var msg *domain.InboundMessage
	if eventType == server.EventTypeMessageReceive && len(envelope.Event) > 0 {
		var data larkim.P2MessageReceiveV1Data
		if err := json.Unmarshal(envelope.Event, &data); err != nil {
			s.logger.Warn("malformed message event", zap.Error(err))
			s.writeAck(w)
			return
		}
		msg = server.MessageFromEvent(&data)
	}

	// a started pass runs to completion even if the platform stops waiting for the ack
	verdict := s.pipeline.Process(context.WithoutCancel(r.Context()), eventType, msg)
	s.logger.Debug("webhook processed", zap.String("event_type", eventType), zap.String("verdict", string(verdict)))
	s.writeAck(w)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	projects := lo.Map(s.registry.All(), func(p domain.Project, _ int) ProjectSummary {
		return ProjectSummary{Name: p.Name, ChatIDs: lo.Ternary(p.ChatIDs == nil, []string{}, p.ChatIDs)}
	})
	s.writeJSON(w, StatusResponse{
		Status:   "running",
		Message:  statusMessage,
		Projects: projects,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("audit log disabled"))
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = min(parsed, 500)
	}

	outcomes, err := s.auditRepo.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"items": outcomes})
}

// ============ Helpers ============

func (s *Server) writeAck(w http.ResponseWriter) {
	s.writeJSON(w, map[string]int{"code": 0})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
