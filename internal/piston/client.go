// Package piston is a typed client for the Piston code execution API, the
// downstream service the proxy fronts. It is also used directly by the CLI
// when no proxy is in between.
package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/internal/network"
)

// DefaultURL is the public Piston execute endpoint.
const DefaultURL = "https://emkc.org/api/v2/piston/execute"

// maxResponseBytes caps how much of an execution response we are willing to
// buffer. Piston truncates program output itself, so anything larger is not
// a legitimate response.
const maxResponseBytes = 4 << 20

// File is one source file of an execution request.
type File struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// ExecuteRequest is the payload for POST /execute.
type ExecuteRequest struct {
	Language       string `json:"language"`
	Version        string `json:"version"`
	Files          []File `json:"files"`
	Stdin          string `json:"stdin,omitempty"`
	RunTimeout     int    `json:"run_timeout,omitempty"`
	CompileTimeout int    `json:"compile_timeout,omitempty"`
}

// StageResult holds the output of one execution stage (compile or run).
type StageResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Output string `json:"output"`
	Code   *int   `json:"code"`
	Signal string `json:"signal"`
}

// ExecuteResponse is the payload of a successful execution.
type ExecuteResponse struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Run      StageResult  `json:"run"`
	Compile  *StageResult `json:"compile,omitempty"`
}

// APIError is a non-2xx answer from the execution API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("piston: %d %s", e.StatusCode, e.Message)
}

// Client talks to one Piston endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *network.Client
	logger  *zap.Logger
}

// NewClient builds a client for the given endpoint. An empty apiKey means
// unauthenticated access, which the public instance allows at a low rate.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    network.NewClient(network.NewDefaultClientConfig()),
		logger:  logger.Named("piston"),
	}
}

// Execute runs the given request and decodes the result.
func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", c.apiKey)
	}

	c.logger.Debug("Executing code",
		zap.String("language", req.Language),
		zap.String("version", req.Version),
		zap.Int("files", len(req.Files)))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read execute response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(raw)}
	}

	var out ExecuteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode execute response: %w", err)
	}
	return &out, nil
}

// apiMessage pulls the "message" field out of an error body, falling back to
// the raw text.
func apiMessage(raw []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(raw)
}
