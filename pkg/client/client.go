/*
Copyright 2025 The Antfly Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client provides a Go SDK client for the Questionate API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
)

// GenerateQuestionsRequest is the body of a question generation request.
type GenerateQuestionsRequest struct {
	Summary string `json:"summary"`
}

// GenerateQuestionsResponse holds the generated questions.
type GenerateQuestionsResponse struct {
	Questions *[]string `json:"questions"`
}

// ModelsResponse describes the generators a server has registered.
type ModelsResponse struct {
	Default string   `json:"default"`
	Backend string   `json:"backend,omitempty"`
	Models  []string `json:"models"`
	Loaded  []string `json:"loaded"`
}

// VersionResponse carries server build information.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("questionate: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("questionate: status %d: %s", e.StatusCode, e.Message)
}

// IsBadRequest reports whether err is an APIError with status 400.
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}

// QuestionateClient is a client for interacting with the Questionate API.
type QuestionateClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewQuestionateClient creates a new Questionate client.
// The baseURL should be the server address (e.g., "http://localhost:8001", the default api_url).
// The /api prefix is automatically appended.
func NewQuestionateClient(baseURL string, httpClient *http.Client) (*QuestionateClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &QuestionateClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api",
	}, nil
}

// GenerateQuestions asks the server for questions about summary.
// The returned slice is never nil on success but may be empty.
func (c *QuestionateClient) GenerateQuestions(ctx context.Context, summary string) ([]string, error) {
	var resp GenerateQuestionsResponse
	if err := c.do(ctx, http.MethodPost, "/generate-questions", GenerateQuestionsRequest{Summary: summary}, &resp); err != nil {
		return nil, err
	}
	if resp.Questions == nil {
		return nil, errors.New("response missing questions field")
	}
	return *resp.Questions, nil
}

// ListModels returns the generators registered on the server.
func (c *QuestionateClient) ListModels(ctx context.Context) (*ModelsResponse, error) {
	var resp ModelsResponse
	if err := c.do(ctx, http.MethodGet, "/models", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the server build information.
func (c *QuestionateClient) Version(ctx context.Context) (*VersionResponse, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/version", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *QuestionateClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
