// Package neuralseek is the client for the remote analysis service. Every call
// posts an agent request to a single endpoint and returns the agent's answer.
package neuralseek

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for analysis service failures. All of them are transport
// failures from the caller's point of view.
var (
	ErrServiceUnreachable = errors.New("analysis service unreachable")
	ErrServiceTimeout     = errors.New("analysis service timeout")
	ErrServiceStatus      = errors.New("analysis service returned an error status")
	ErrInvalidResponse    = errors.New("analysis service returned an invalid response")
)

// Agent names understood by the service.
const (
	AgentUpload      = "Agent-1"
	AgentAnalysis    = "Agent-3"
	AgentUploadImage = "Agent-4"
)

// Param names sent to the agents.
const (
	ParamFileName    = "file_name"
	ParamFileContent = "file_content_base64"
	ParamAnalysisID  = "analysis_id"
)

// HeatmapFileName is the name the rendered heatmap is relayed under.
const HeatmapFileName = "heatmap.png"

const maxErrorBodyLength = 512

// Client is the interface for talking to the analysis service.
type Client interface {
	// UploadTranscript submits a transcript and returns the raw answer.
	UploadTranscript(ctx context.Context, fileName string, content []byte) (*Response, error)
	// FetchAnalysis returns the rubric evaluation for an analysis identifier.
	FetchAnalysis(ctx context.Context, analysisID string) (*Response, error)
	// UploadImage relays a rendered image.
	UploadImage(ctx context.Context, fileName string, content []byte) (*Response, error)
}

// Request is the agent request body.
type Request struct {
	NTL     string  `json:"ntl"`
	Agent   string  `json:"agent"`
	Params  []Param `json:"params"`
	Options Options `json:"options"`
}

// Param is one ordered name/value pair.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Options carries the service-side timeout in milliseconds.
type Options struct {
	Timeout   int64 `json:"timeout"`
	Streaming bool  `json:"streaming"`
}

// Response is the decoded agent reply. Answer is the RawAnswer string; Body
// keeps the whole reply.
type Response struct {
	Answer string
	Body   map[string]json.RawMessage
}

// HTTPClient implements Client over JSON/HTTP with bearer authentication.
type HTTPClient struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
}

// NewHTTPClient creates a client. timeout is both the HTTP client timeout and
// the options.timeout sent to the service.
func NewHTTPClient(endpoint, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) UploadTranscript(ctx context.Context, fileName string, content []byte) (*Response, error) {
	return c.Invoke(ctx, AgentUpload,
		Param{Name: ParamFileName, Value: fileName},
		Param{Name: ParamFileContent, Value: base64.StdEncoding.EncodeToString(content)},
	)
}

func (c *HTTPClient) FetchAnalysis(ctx context.Context, analysisID string) (*Response, error) {
	return c.Invoke(ctx, AgentAnalysis, Param{Name: ParamAnalysisID, Value: analysisID})
}

func (c *HTTPClient) UploadImage(ctx context.Context, fileName string, content []byte) (*Response, error) {
	return c.Invoke(ctx, AgentUploadImage,
		Param{Name: ParamFileName, Value: fileName},
		Param{Name: ParamFileContent, Value: base64.StdEncoding.EncodeToString(content)},
	)
}

// Invoke sends one request to agent. It is attempted once.
func (c *HTTPClient) Invoke(ctx context.Context, agent string, params ...Param) (*Response, error) {
	body, err := json.Marshal(Request{
		Agent:  agent,
		Params: params,
		Options: Options{
			Timeout:   c.timeout.Milliseconds(),
			Streaming: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, fmt.Errorf("%w: status %d: %s", ErrServiceStatus, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, classifyError(err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &Response{Answer: answerText(decoded["answer"]), Body: decoded}, nil
}

// answerText returns a JSON string answer verbatim and any other non-null
// value as its JSON text.
func answerText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if trimmed := bytes.TrimSpace(raw); !bytes.Equal(trimmed, []byte("null")) {
		return string(trimmed)
	}
	return ""
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrServiceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrServiceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
}

// IsTransport reports whether err came from talking to the service.
func IsTransport(err error) bool {
	return errors.Is(err, ErrServiceUnreachable) ||
		errors.Is(err, ErrServiceTimeout) ||
		errors.Is(err, ErrServiceStatus) ||
		errors.Is(err, ErrInvalidResponse)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
