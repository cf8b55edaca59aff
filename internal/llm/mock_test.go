package llm

import (
	"context"
	"sync/atomic"
)

// MockProvider returns a fixed response and records calls
type MockProvider struct {
	name      string
	available bool
	text      string
	err       error
	calls     atomic.Int32
	lastReq   CompletionRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.calls.Add(1)
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &CompletionResponse{Text: m.text, Model: "mock"}, nil
}
