package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/usecase"
)

// BatchMCPServer exposes batch feedback operations as MCP tools
type BatchMCPServer struct {
	server    *mcp.Server
	feedback  *usecase.FeedbackUsecase
	auditRepo repo.AuditRepo // optional
	logger    *zap.Logger
}

// NewServer creates a new batch MCP server; auditRepo may be nil
func NewServer(feedback *usecase.FeedbackUsecase, auditRepo repo.AuditRepo, logger *zap.Logger) *BatchMCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "feishu-batch-tools",
		Version: "v1.0.0",
	}, nil)

	s := &BatchMCPServer{
		server:    server,
		feedback:  feedback,
		auditRepo: auditRepo,
		logger:    logger,
	}
	s.registerTools()
	return s
}

func (s *BatchMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_projects",
		Description: "List the configured projects with their Bitable table and bound group chats.",
	}, s.handleListProjects)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_batch",
		Description: "Find the records of a batch. Searches one project when given, otherwise every project.",
	}, s.handleSearchBatch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record_feedback",
		Description: "Record a feedback link on every record of a batch in a project, the same way the bot does for a chat message.",
	}, s.handleRecordFeedback)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recent_feedback",
		Description: "List the most recent feedback messages handled by the bot, newest first.",
	}, s.handleRecentFeedback)
}

// ProjectInfo describes one project
type ProjectInfo struct {
	Name     string   `json:"name"`
	AppToken string   `json:"app_token"`
	TableID  string   `json:"table_id"`
	ChatIDs  []string `json:"chat_ids"`
}

// ListProjectsInput is empty - no input needed
type ListProjectsInput struct{}

// ListProjectsOutput contains the registry
type ListProjectsOutput struct {
	Projects []ProjectInfo `json:"projects"`
}

func (s *BatchMCPServer) handleListProjects(ctx context.Context, req *mcp.CallToolRequest, input ListProjectsInput) (*mcp.CallToolResult, ListProjectsOutput, error) {
	projects := lo.Map(s.feedback.Registry().All(), func(p domain.Project, _ int) ProjectInfo {
		return ProjectInfo{
			Name:     p.Name,
			AppToken: p.AppToken,
			TableID:  p.TableID,
			ChatIDs:  lo.Ternary(p.ChatIDs == nil, []string{}, p.ChatIDs),
		}
	})
	return nil, ListProjectsOutput{Projects: projects}, nil
}

// SearchBatchInput is the input for search_batch tool
type SearchBatchInput struct {
	Batch   string `json:"batch" jsonschema:"The batch name as written inside 【】"`
	Project string `json:"project,omitempty" jsonschema:"Optional project name; all projects are searched when empty"`
}

// BatchMatch is the set of records of a batch in one project
type BatchMatch struct {
	Project   string   `json:"project"`
	Count     int      `json:"count"`
	RecordIDs []string `json:"record_ids"`
}

// SearchBatchOutput contains the matches per project
type SearchBatchOutput struct {
	Matches []BatchMatch `json:"matches"`
}

func (s *BatchMCPServer) handleSearchBatch(ctx context.Context, req *mcp.CallToolRequest, input SearchBatchInput) (*mcp.CallToolResult, SearchBatchOutput, error) {
	if input.Batch == "" {
		return nil, SearchBatchOutput{}, errors.New("batch is required")
	}

	var matches []domain.ProjectMatch
	if input.Project != "" {
		project, ok := s.feedback.Registry().Find(input.Project)
		if !ok {
			return nil, SearchBatchOutput{}, fmt.Errorf("unknown project %q", input.Project)
		}
		if records := s.feedback.SearchProject(ctx, project, input.Batch); len(records) > 0 {
			matches = append(matches, domain.ProjectMatch{Project: *project, Records: records})
		}
	} else {
		matches = s.feedback.SearchAll(ctx, input.Batch)
	}

	out := SearchBatchOutput{Matches: make([]BatchMatch, 0, len(matches))}
	for _, m := range matches {
		out.Matches = append(out.Matches, BatchMatch{
			Project:   m.Project.Name,
			Count:     len(m.Records),
			RecordIDs: lo.Map(m.Records, func(r domain.Record, _ int) string { return r.RecordID }),
		})
	}
	return nil, out, nil
}

// RecordFeedbackInput is the input for record_feedback tool
type RecordFeedbackInput struct {
	Project   string `json:"project" jsonschema:"Project name as returned by list_projects"`
	Batch     string `json:"batch" jsonschema:"The batch name"`
	MessageID string `json:"message_id" jsonschema:"ID of the Feishu message carrying the feedback"`
	ChatID    string `json:"chat_id,omitempty" jsonschema:"Optional chat ID added to the message link"`
}

// RecordFeedbackOutput reports how many records were updated
type RecordFeedbackOutput struct {
	Success int    `json:"success"`
	Total   int    `json:"total"`
	Summary string `json:"summary"`
}

func (s *BatchMCPServer) handleRecordFeedback(ctx context.Context, req *mcp.CallToolRequest, input RecordFeedbackInput) (*mcp.CallToolResult, RecordFeedbackOutput, error) {
	if input.Project == "" || input.Batch == "" || input.MessageID == "" {
		return nil, RecordFeedbackOutput{}, errors.New("project, batch and message_id are required")
	}

	info := &domain.FeedbackInfo{
		MessageID:   input.MessageID,
		ChatID:      input.ChatID,
		Batch:       input.Batch,
		MessageLink: s.feedback.MessageLink(input.MessageID, input.ChatID),
		ReceivedAt:  time.Now(),
	}
	success, total, err := s.feedback.ApplyToBatch(ctx, input.Project, input.Batch, info)
	if err != nil {
		return nil, RecordFeedbackOutput{}, err
	}

	summary := fmt.Sprintf("❌ 在「%s」中未找到批次「%s」", input.Project, input.Batch)
	if total > 0 {
		summary = s.feedback.SummaryText(input.Project, input.Batch, success, total)
	}
	s.logger.Info("feedback recorded via mcp",
		zap.String("project", input.Project), zap.String("batch", input.Batch), zap.Int("success", success), zap.Int("total", total))

	return nil, RecordFeedbackOutput{Success: success, Total: total, Summary: summary}, nil
}

// RecentFeedbackInput is the input for recent_feedback tool
type RecentFeedbackInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return (default 20)"`
}

// RecentFeedbackOutput contains audit entries
type RecentFeedbackOutput struct {
	Items []*domain.FeedbackOutcome `json:"items"`
}

func (s *BatchMCPServer) handleRecentFeedback(ctx context.Context, req *mcp.CallToolRequest, input RecentFeedbackInput) (*mcp.CallToolResult, RecentFeedbackOutput, error) {
	if s.auditRepo == nil {
		return nil, RecentFeedbackOutput{}, errors.New("audit log disabled; set FEEDBACK_DB_PATH")
	}
	items, err := s.auditRepo.Recent(ctx, input.Limit)
	if err != nil {
		return nil, RecentFeedbackOutput{}, err
	}
	if items == nil {
		items = []*domain.FeedbackOutcome{}
	}
	return nil, RecentFeedbackOutput{Items: items}, nil
}

// Run starts the MCP server with stdio transport
func (s *BatchMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *BatchMCPServer) GetServer() *mcp.Server {
	return s.server
}
