// Package marker persists "already reported" flags on the client so a repeated
// report for the same (target, reporter) pair never reaches the network.
package marker

import (
	"context"
	"fmt"
	"sync"
)

// Store records one-shot markers.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// ReportKey builds the marker key for a report by reporter against a target.
func ReportKey(targetType string, targetID int64, reporter string) string {
	return fmt.Sprintf("report:%s:%d:%s", targetType, targetID, reporter)
}

// Memory is a process-local Store. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]struct{})}
}

func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok, nil
}

func (m *Memory) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}
