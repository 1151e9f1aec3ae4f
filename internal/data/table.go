package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-batch-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-batch-bot/internal/infra/feishu"
)

// bitableAPI is the subset of feishu.BitableClient used by the table repository
type bitableAPI interface {
	SearchRecords(ctx context.Context, appToken, tableID string, filter *feishu.Filter) ([]feishu.BitableRecord, error)
	GetRecord(ctx context.Context, appToken, tableID, recordID string) (*feishu.BitableRecord, error)
	UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) error
	CreateComment(ctx context.Context, appToken, tableID, recordID, text string) error
}

// tableRepo implements the Bitable repository
type tableRepo struct {
	client     bitableAPI
	batchField string
	logger     *zap.Logger
	locks      *keyedMutex
}

// NewTableRepo creates a new table repository searching on batchField
func NewTableRepo(client bitableAPI, batchField string, logger *zap.Logger) repo.TableRepo {
	return &tableRepo{
		client:     client,
		batchField: batchField,
		logger:     logger,
		locks:      newKeyedMutex(),
	}
}

// SearchByBatch returns records whose batch field equals batch, empty on failure
func (r *tableRepo) SearchByBatch(ctx context.Context, project *domain.Project, batch string) []domain.Record {
	items, err := r.client.SearchRecords(ctx, project.AppToken, project.TableID, feishu.FieldEquals(r.batchField, batch))
	if err != nil {
		r.logger.Error("search by batch failed",
			zap.String("project", project.Name), zap.String("batch", batch), zap.Error(err))
		return nil
	}

	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		records = append(records, domain.Record{RecordID: item.RecordID, Fields: item.Fields})
	}
	r.logger.Info("search by batch",
		zap.String("project", project.Name), zap.String("batch", batch), zap.Int("records", len(records)))
	return records
}

// GetField returns the current field value as text, "" on failure
func (r *tableRepo) GetField(ctx context.Context, project *domain.Project, recordID, field string) string {
	record, err := r.client.GetRecord(ctx, project.AppToken, project.TableID, recordID)
	if err != nil {
		r.logger.Warn("get field failed",
			zap.String("project", project.Name), zap.String("record_id", recordID), zap.Error(err))
		return ""
	}
	return flattenField(record.Fields[field])
}

// UpdateField overwrites a text field
func (r *tableRepo) UpdateField(ctx context.Context, project *domain.Project, recordID, field, value string) error {
	return r.client.UpdateRecord(ctx, project.AppToken, project.TableID, recordID, map[string]interface{}{field: value})
}

// AppendField appends fragment on a new line. Appends to one record are serialized
// within this process only.
func (r *tableRepo) AppendField(ctx context.Context, project *domain.Project, recordID, field, fragment string) bool {
	unlock := r.locks.Lock(project.AppToken + "/" + project.TableID + "/" + recordID)
	defer unlock()

	// an unreadable record must not be mistaken for an empty field
	record, err := r.client.GetRecord(ctx, project.AppToken, project.TableID, recordID)
	if err != nil {
		r.logger.Warn("append field: read failed, record left untouched",
			zap.String("project", project.Name), zap.String("record_id", recordID), zap.String("field", field), zap.Error(err))
		return false
	}

	current := flattenField(record.Fields[field])
	value := fragment
	if current != "" {
		value = current + "\n" + fragment
	}

	if err := r.UpdateField(ctx, project, recordID, field, value); err != nil {
		r.logger.Warn("append field failed",
			zap.String("project", project.Name), zap.String("record_id", recordID), zap.String("field", field), zap.Error(err))
		return false
	}
	return true
}

// AddComment posts a plain-text comment on a record
func (r *tableRepo) AddComment(ctx context.Context, project *domain.Project, recordID, text string) bool {
	if err := r.client.CreateComment(ctx, project.AppToken, project.TableID, recordID, text); err != nil {
		r.logger.Warn("add comment failed",
			zap.String("project", project.Name), zap.String("record_id", recordID), zap.Error(err))
		return false
	}
	return true
}

// flattenField renders a Bitable cell as plain text.
// Text cells arrive as segment arrays, numbers as float64.
func flattenField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []interface{}:
		var b strings.Builder
		for i, item := range val {
			if seg, ok := item.(map[string]interface{}); ok {
				b.WriteString(flattenField(seg))
				continue
			}
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(flattenField(item))
		}
		return b.String()
	case map[string]interface{}:
		if text, ok := val["text"].(string); ok {
			return text
		}
		if inner, ok := val["value"]; ok {
			return flattenField(inner)
		}
		if link, ok := val["link"].(string); ok {
			return link
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// keyedMutex hands out one mutex per key, dropping it once unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock locks key and returns its unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
