package numerator

import (
	"context"
	"time"
)

// MockGenerator is a Generator for unit tests.
type MockGenerator struct {
	GetNextNumberFunc func(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
	SetNextNumberFunc func(ctx context.Context, cfg Config, period time.Time, value int64) error

	// Calls counts GetNextNumber invocations
	Calls int
}

var _ Generator = (*MockGenerator)(nil)

// GetNextNumber implements Generator. Without a func it returns "<prefix>-MOCK-00001".
func (m *MockGenerator) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	m.Calls++
	if m.GetNextNumberFunc != nil {
		return m.GetNextNumberFunc(ctx, cfg, opts, period)
	}
	return cfg.Prefix + "-MOCK-00001", nil
}

// SetNextNumber implements Generator.
func (m *MockGenerator) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	if m.SetNextNumberFunc != nil {
		return m.SetNextNumberFunc(ctx, cfg, period, value)
	}
	return nil
}
