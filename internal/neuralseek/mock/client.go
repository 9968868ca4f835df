// Package mock provides a scriptable neuralseek.Client for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/medalyze/internal/neuralseek"
)

// Call records one request made through the mock.
type Call struct {
	Agent      string
	FileName   string
	AnalysisID string
	Content    []byte
}

// Client satisfies neuralseek.Client for testing. Unset funcs return an empty answer.
type Client struct {
	UploadTranscriptFunc func(ctx context.Context, fileName string, content []byte) (*neuralseek.Response, error)
	FetchAnalysisFunc    func(ctx context.Context, analysisID string) (*neuralseek.Response, error)
	UploadImageFunc      func(ctx context.Context, fileName string, content []byte) (*neuralseek.Response, error)

	mu    sync.Mutex
	calls []Call
}

func (m *Client) UploadTranscript(ctx context.Context, fileName string, content []byte) (*neuralseek.Response, error) {
	m.record(Call{Agent: neuralseek.AgentUpload, FileName: fileName, Content: content})
	if m.UploadTranscriptFunc != nil {
		return m.UploadTranscriptFunc(ctx, fileName, content)
	}
	return &neuralseek.Response{}, nil
}

func (m *Client) FetchAnalysis(ctx context.Context, analysisID string) (*neuralseek.Response, error) {
	m.record(Call{Agent: neuralseek.AgentAnalysis, AnalysisID: analysisID})
	if m.FetchAnalysisFunc != nil {
		return m.FetchAnalysisFunc(ctx, analysisID)
	}
	return &neuralseek.Response{}, nil
}

func (m *Client) UploadImage(ctx context.Context, fileName string, content []byte) (*neuralseek.Response, error) {
	m.record(Call{Agent: neuralseek.AgentUploadImage, FileName: fileName, Content: content})
	if m.UploadImageFunc != nil {
		return m.UploadImageFunc(ctx, fileName, content)
	}
	return &neuralseek.Response{}, nil
}

// Calls returns the recorded calls in order.
func (m *Client) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls for one agent.
func (m *Client) CallsTo(agent string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Agent == agent {
			out = append(out, c)
		}
	}
	return out
}

func (m *Client) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Answer returns a response carrying answer.
func Answer(answer string) *neuralseek.Response {
	return &neuralseek.Response{Answer: answer}
}

// NewFailingClient returns a Client whose every call fails with err.
func NewFailingClient(err error) *Client {
	return &Client{
		UploadTranscriptFunc: func(context.Context, string, []byte) (*neuralseek.Response, error) {
			return nil, err
		},
		FetchAnalysisFunc: func(context.Context, string) (*neuralseek.Response, error) {
			return nil, err
		},
		UploadImageFunc: func(context.Context, string, []byte) (*neuralseek.Response, error) {
			return nil, err
		},
	}
}

// Compile-time check that Client implements neuralseek.Client.
var _ neuralseek.Client = (*Client)(nil)
