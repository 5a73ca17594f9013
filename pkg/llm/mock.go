package llm

import (
	"context"
	"fmt"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Requests records every request received, in order.
	Requests []ChatRequest
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// FailingMockProvider always fails.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}

// FlakyMockProvider fails the first FailCount calls, then succeeds.
// Useful for exercising request variant fallback.
type FlakyMockProvider struct {
	FailCount int
	Response  string
	calls     int
	Requests  []ChatRequest
}

func (f *FlakyMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.Requests = append(f.Requests, req)
	f.calls++
	if f.calls <= f.FailCount {
		return nil, fmt.Errorf("mock failure %d", f.calls)
	}
	return &ChatResponse{Content: f.Response}, nil
}
