package numerator

import (
	"context"
)

// MockGenerator is a test implementation of Generator.
type MockGenerator struct {
	NextFunc   func(ctx context.Context, prefix string, opts Options) (string, error)
	SyncToFunc func(ctx context.Context, prefix string, opts Options, minimumSeq int64) (int64, error)
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, prefix string, opts Options) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, prefix, opts)
	}
	return prefix + "-MOCK-001", nil
}

// SyncTo implements Generator.
func (m *MockGenerator) SyncTo(ctx context.Context, prefix string, opts Options, minimumSeq int64) (int64, error) {
	if m.SyncToFunc != nil {
		return m.SyncToFunc(ctx, prefix, opts, minimumSeq)
	}
	return minimumSeq, nil
}

var _ Generator = (*MockGenerator)(nil)
