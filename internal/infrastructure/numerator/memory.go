package numerator

import (
	"context"
	"sync"
	"time"

	corenumerator "purchasing/internal/core/numerator"
)

// Memory issues numbers from in-process counters. Both strategies behave as
// strict since nothing is persisted.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ corenumerator.Generator = (*Memory)(nil)

// NewMemory creates an in-memory numerator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// GetNextNumber implements corenumerator.Generator.
func (m *Memory) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := buildKey(cfg, period)

	m.mu.Lock()
	m.counters[key]++
	num := m.counters[key]
	m.mu.Unlock()

	return formatNumber(cfg, period, num), nil
}

// SetNextNumber implements corenumerator.Generator.
func (m *Memory) SetNextNumber(_ context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	m.mu.Lock()
	m.counters[buildKey(cfg, period)] = value
	m.mu.Unlock()
	return nil
}
