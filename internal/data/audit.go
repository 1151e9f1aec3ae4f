package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

const defaultRecentLimit = 20

// auditRepo implements the feedback audit repository
type auditRepo struct {
	db *sql.DB
}

// NewAuditRepo opens (or creates) the audit database at dbPath
func NewAuditRepo(dbPath string) (repo.AuditRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback_outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			batch TEXT NOT NULL,
			project TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			success INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			reply TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_feedback_outcomes_batch ON feedback_outcomes(batch)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &auditRepo{db: db}, nil
}

// Save appends an outcome
func (r *auditRepo) Save(ctx context.Context, outcome *domain.FeedbackOutcome) error {
	createdAt := outcome.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback_outcomes (message_id, chat_id, batch, project, status, success, total, reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		outcome.MessageID,
		outcome.ChatID,
		outcome.Batch,
		outcome.Project,
		string(outcome.Status),
		outcome.Success,
		outcome.Total,
		outcome.Reply,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	return nil
}

// Recent returns the latest outcomes, newest first
func (r *auditRepo) Recent(ctx context.Context, limit int) ([]*domain.FeedbackOutcome, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT message_id, chat_id, batch, project, status, success, total, reply, created_at
		FROM feedback_outcomes
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]*domain.FeedbackOutcome, 0)
	for rows.Next() {
		var o domain.FeedbackOutcome
		var status string
		var createdAt int64
		if err := rows.Scan(&o.MessageID, &o.ChatID, &o.Batch, &o.Project, &status, &o.Success, &o.Total, &o.Reply, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Status = domain.FeedbackStatus(status)
		o.CreatedAt = time.UnixMilli(createdAt)
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// Close closes the database
func (r *auditRepo) Close() error {
	return r.db.Close()
}
