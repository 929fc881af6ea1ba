// Package mock provides a test double for llms.Model.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// LLM replies with Chunks, streaming them one at a time if a streaming
// function is passed. If Err is set it is returned after the chunks are sent.
type LLM struct {
	Chunks     []string
	StopReason string
	Err        error

	mu       sync.Mutex
	requests [][]llms.MessageContent
	options  []llms.CallOptions
}

func (m *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.mu.Lock()
	m.requests = append(m.requests, messages)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if opts.StreamingFunc != nil {
		for _, chunk := range m.Chunks {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:    strings.Join(m.Chunks, ""),
				StopReason: m.StopReason,
			},
		},
	}, nil
}

func (m *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Requests returns the messages of every call made.
func (m *LLM) Requests() [][]llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]llms.MessageContent(nil), m.requests...)
}

// Options returns the options of every call made.
func (m *LLM) Options() []llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llms.CallOptions(nil), m.options...)
}
