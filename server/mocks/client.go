// Package mocks provides test doubles for the model client and config watcher.
package mocks

import (
	"context"
	"sync"
)

// Call records the prompts of one Invoke.
type Call struct {
	SystemPrompt string
	UserPrompt   string
}

// MockClient implements provider.Client with a configurable reply.
//
// Example usage:
//
//	client := mocks.NewMockClient(func(ctx context.Context, sys, user string) (string, error) {
//	    return `{"suggestions":[]}`, nil
//	})
type MockClient struct {
	InvokeFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ClientName string

	mu    sync.Mutex
	calls []Call
}

// NewMockClient creates a MockClient. A nil invokeFunc returns "" and no error.
func NewMockClient(invokeFunc func(context.Context, string, string) (string, error)) *MockClient {
	return &MockClient{InvokeFunc: invokeFunc, ClientName: "mock:model"}
}

// NewStaticClient always replies with raw.
func NewStaticClient(raw string) *MockClient {
	return NewMockClient(func(context.Context, string, string) (string, error) {
		return raw, nil
	})
}

func (m *MockClient) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	m.mu.Unlock()

	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, systemPrompt, userPrompt)
	}
	return "", nil
}

func (m *MockClient) Name() string { return m.ClientName }

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
