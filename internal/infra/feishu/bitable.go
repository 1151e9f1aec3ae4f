package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkbitable "github.com/larksuite/oapi-sdk-go/v3/service/bitable/v1"
)

const (
	searchPageSize = 500
	// maxSearchPages bounds pagination on a misbehaving page_token
	maxSearchPages = 100
)

// APIError is a non-zero code returned by the Feishu open API
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error: code=%d msg=%s", e.Code, e.Msg)
}

// BitableRecord is one row returned by the Bitable API
type BitableRecord struct {
	RecordID string
	Fields   map[string]interface{}
}

// Condition is one filter condition of a record search
type Condition struct {
	FieldName string
	Operator  string
	Value     []string
}

// Filter is the record search filter
type Filter struct {
	Conjunction string
	Conditions  []Condition
}

// FieldEquals builds a single "is" condition filter
func FieldEquals(field, value string) *Filter {
	return &Filter{
		Conjunction: "and",
		Conditions:  []Condition{{FieldName: field, Operator: "is", Value: []string{value}}},
	}
}

func (f *Filter) filterInfo() *larkbitable.FilterInfo {
	conditions := make([]*larkbitable.Condition, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		conditions = append(conditions, larkbitable.NewConditionBuilder().
			FieldName(c.FieldName).
			Operator(c.Operator).
			Value(c.Value).
			Build())
	}
	return larkbitable.NewFilterInfoBuilder().
		Conjunction(f.Conjunction).
		Conditions(conditions).
		Build()
}

// BitableClient wraps the SDK's Bitable record API. Tenant tokens are cached
// and refreshed by the SDK.
type BitableClient struct {
	larkCli *lark.Client
}

// NewBitableClient creates a Bitable client on an SDK client
func NewBitableClient(larkCli *lark.Client) *BitableClient {
	return &BitableClient{larkCli: larkCli}
}

// SearchRecords returns every record matching filter, following pagination
func (c *BitableClient) SearchRecords(ctx context.Context, appToken, tableID string, filter *Filter) ([]BitableRecord, error) {
	body := larkbitable.NewSearchAppTableRecordReqBodyBuilder().
		Filter(filter.filterInfo()).
		Build()

	var records []BitableRecord
	pageToken := ""
	for page := 0; page < maxSearchPages; page++ {
		builder := larkbitable.NewSearchAppTableRecordReqBuilder().
			AppToken(appToken).
			TableId(tableID).
			PageSize(searchPageSize).
			Body(body)
		if pageToken != "" {
			builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Bitable.V1.AppTableRecord.Search(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("search records: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("search records: %w", &APIError{Code: resp.Code, Msg: resp.Msg})
		}
		if resp.Data == nil {
			break
		}
		for _, item := range resp.Data.Items {
			records = append(records, toRecord(item))
		}

		if !larkcore.BoolValue(resp.Data.HasMore) || larkcore.StringValue(resp.Data.PageToken) == "" {
			break
		}
		pageToken = larkcore.StringValue(resp.Data.PageToken)
	}
	return records, nil
}

// GetRecord fetches a single record
func (c *BitableClient) GetRecord(ctx context.Context, appToken, tableID, recordID string) (*BitableRecord, error) {
	req := larkbitable.NewGetAppTableRecordReqBuilder().
		AppToken(appToken).
		TableId(tableID).
		RecordId(recordID).
		Build()

	resp, err := c.larkCli.Bitable.V1.AppTableRecord.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", recordID, err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get record %s: %w", recordID, &APIError{Code: resp.Code, Msg: resp.Msg})
	}
	if resp.Data == nil || resp.Data.Record == nil {
		return &BitableRecord{RecordID: recordID, Fields: map[string]interface{}{}}, nil
	}
	record := toRecord(resp.Data.Record)
	return &record, nil
}

// UpdateRecord overwrites the given fields of a record
func (c *BitableClient) UpdateRecord(ctx context.Context, appToken, tableID, recordID string, fields map[string]interface{}) error {
	req := larkbitable.NewUpdateAppTableRecordReqBuilder().
		AppToken(appToken).
		TableId(tableID).
		RecordId(recordID).
		AppTableRecord(larkbitable.NewAppTableRecordBuilder().Fields(fields).Build()).
		Build()

	resp, err := c.larkCli.Bitable.V1.AppTableRecord.Update(ctx, req)
	if err != nil {
		return fmt.Errorf("update record %s: %w", recordID, err)
	}
	if !resp.Success() {
		return fmt.Errorf("update record %s: %w", recordID, &APIError{Code: resp.Code, Msg: resp.Msg})
	}
	return nil
}

// CreateComment posts a plain-text comment on a record.
// Record comments have no typed SDK resource.
func (c *BitableClient) CreateComment(ctx context.Context, appToken, tableID, recordID, text string) error {
	path := fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records/%s/comments",
		url.PathEscape(appToken), url.PathEscape(tableID), url.PathEscape(recordID))
	body := map[string]interface{}{
		"content": []map[string]string{{"type": "text", "text": text}},
	}

	resp, err := c.larkCli.Post(ctx, path, body, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return fmt.Errorf("comment record %s: %w", recordID, err)
	}
	var result larkcore.CodeError
	if err := json.Unmarshal(resp.RawBody, &result); err != nil {
		return fmt.Errorf("comment record %s: decode (http %d): %w", recordID, resp.StatusCode, err)
	}
	if result.Code != 0 {
		return fmt.Errorf("comment record %s: %w", recordID, &APIError{Code: result.Code, Msg: result.Msg})
	}
	return nil
}

func toRecord(item *larkbitable.AppTableRecord) BitableRecord {
	fields := item.Fields
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return BitableRecord{RecordID: larkcore.StringValue(item.RecordId), Fields: fields}
}
