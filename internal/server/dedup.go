package server

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup policies
const (
	DedupPolicyClear = "clear"
	DedupPolicyLRU   = "lru"

	DefaultDedupSize = 1000
)

// Deduper remembers message ids already accepted
type Deduper interface {
	// Seen reports whether id was seen before and records it if not
	Seen(id string) bool
	// Len returns the number of remembered ids
	Len() int
}

// NewDeduper creates a deduper for policy holding up to size ids
func NewDeduper(policy string, size int) (Deduper, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	switch policy {
	case "", DedupPolicyClear:
		return NewClearingSet(size), nil
	case DedupPolicyLRU:
		return NewLRUSet(size)
	default:
		return nil, fmt.Errorf("unknown dedup policy %q", policy)
	}
}

// ClearingSet forgets everything once it is full
type ClearingSet struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	capacity int
}

// NewClearingSet creates a clearing set
func NewClearingSet(capacity int) *ClearingSet {
	return &ClearingSet{seen: make(map[string]struct{}), capacity: capacity}
}

func (s *ClearingSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	if len(s.seen) >= s.capacity {
		clear(s.seen)
	}
	s.seen[id] = struct{}{}
	return false
}

func (s *ClearingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// LRUSet evicts the least recently seen id once full
type LRUSet struct {
	mu    sync.Mutex
	cache *lru.Cache[string, struct{}]
}

// NewLRUSet creates an LRU set
func NewLRUSet(capacity int) (*LRUSet, error) {
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUSet{cache: cache}, nil
}

func (s *LRUSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cache.Get(id); ok {
		return true
	}
	s.cache.Add(id, struct{}{})
	return false
}

func (s *LRUSet) Len() int {
	return s.cache.Len()
}
