package domain

import (
	"regexp"
	"strings"
)

// DefaultFeedbackKeyword is the phrase that turns a bracketed batch into a feedback report
const DefaultFeedbackKeyword = "物品需求反馈"

// BatchExtractor recognises "【batch】 ... keyword" messages
type BatchExtractor struct {
	keyword string
	pattern *regexp.Regexp
}

// NewBatchExtractor builds an extractor for the given keyword; empty means the default
func NewBatchExtractor(keyword string) *BatchExtractor {
	if keyword == "" {
		keyword = DefaultFeedbackKeyword
	}
	return &BatchExtractor{
		keyword: keyword,
		pattern: regexp.MustCompile(`【(.+?)】.*?` + regexp.QuoteMeta(keyword)),
	}
}

// Keyword returns the phrase the extractor requires
func (e *BatchExtractor) Keyword() string {
	return e.keyword
}

// Extract returns the trimmed batch name. Blank batch names count as no match.
func (e *BatchExtractor) Extract(text string) (string, bool) {
	m := e.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	batch := strings.TrimSpace(m[1])
	if batch == "" {
		return "", false
	}
	return batch, true
}
