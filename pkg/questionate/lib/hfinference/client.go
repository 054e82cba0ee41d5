// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hfinference generates text through the hosted Hugging Face
// inference API (text2text-generation task).
package hfinference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the hosted inference API base URL.
	DefaultEndpoint = "https://api-inference.huggingface.co"

	// DefaultTimeout bounds each inference request.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody limits how much of an error response is kept.
	maxErrorBody = 512
)

var _ questions.Generator = (*Client)(nil)

// StatusError is returned when the inference API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference API returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls the inference API for a single model.
type Client struct {
	endpoint   string
	model      string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithEndpoint sets the API base URL
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = strings.TrimSuffix(endpoint, "/")
		}
	}
}

// WithToken sets the bearer token
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for model (e.g., "valhalla/t5-small-qg-prepend").
func NewClient(model string, opts ...ClientOption) (*Client, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	c := &Client{
		endpoint:   DefaultEndpoint,
		model:      model,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := url.Parse(c.endpoint); err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	return c, nil
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
	Options    options    `json:"options"`
}

type parameters struct {
	MaxNewTokens       int     `json:"max_new_tokens"`
	DoSample           bool    `json:"do_sample"`
	TopP               float32 `json:"top_p"`
	Temperature        float32 `json:"temperature"`
	NoRepeatNGramSize  int     `json:"no_repeat_ngram_size,omitempty"`
	NumReturnSequences int     `json:"num_return_sequences"`
	Truncation         string  `json:"truncation,omitempty"`
}

type options struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// Generate asks the hosted model for params.NumReturnSequences samples of prompt.
//
// The prompt is sent as is. When params.MaxInputTokens is positive the request
// asks for "only_first" truncation, and the service's tokenizer then cuts the
// input to the model's own maximum length (512 tokens for the T5 question
// models). The API has no field for an explicit input token count.
func (c *Client) Generate(ctx context.Context, prompt string, params questions.GenerationParams) ([]string, error) {
	body := request{
		Inputs: prompt,
		Parameters: parameters{
			MaxNewTokens:       params.MaxNewTokens,
			DoSample:           params.DoSample,
			TopP:               params.TopP,
			Temperature:        params.Temperature,
			NoRepeatNGramSize:  params.NoRepeatNGramSize,
			NumReturnSequences: max(1, params.NumReturnSequences),
		},
		// Cached answers would repeat the same samples for the same summary.
		Options: options{WaitForModel: true, UseCache: false},
	}
	if params.MaxInputTokens > 0 {
		body.Parameters.Truncation = "only_first"
	}

	data, err := sonic.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	reqURL := c.endpoint + "/models/" + c.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Calling inference API",
		zap.String("model", c.model),
		zap.Int("num_return_sequences", body.Parameters.NumReturnSequences))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling inference API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var generations []generation
	if err := sonic.Unmarshal(respData, &generations); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	texts := make([]string, len(generations))
	for i, g := range generations {
		texts[i] = g.GeneratedText
	}
	return texts, nil
}

// Model returns the hosted model ID.
func (c *Client) Model() string {
	return c.model
}

// Close is a no-op; idle connections belong to the shared HTTP client.
func (c *Client) Close() error {
	return nil
}
