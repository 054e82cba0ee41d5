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

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuestionateClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid", baseURL: "http://localhost:8001"},
		{name: "trailing slash", baseURL: "http://localhost:8001/"},
		{name: "missing scheme", baseURL: "localhost:8001", wantErr: true},
		{name: "empty", baseURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewQuestionateClient(tt.baseURL, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://localhost:8001/api", c.baseURL)
		})
	}
}

func TestClient_GenerateQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate-questions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req GenerateQuestionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Water boils at 100C. It freezes at 0C.", req.Summary)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":["At what temperature does water boil?","What happens at 0C?"]}`))
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, server.Client())
	require.NoError(t, err)

	qs, err := c.GenerateQuestions(context.Background(), "Water boils at 100C. It freezes at 0C.")
	require.NoError(t, err)
	assert.Equal(t, []string{"At what temperature does water boil?", "What happens at 0C?"}, qs)
}

func TestClient_GenerateQuestions_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":[]}`))
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, nil)
	require.NoError(t, err)

	qs, err := c.GenerateQuestions(context.Background(), "Short.")
	require.NoError(t, err)
	assert.NotNil(t, qs)
	assert.Empty(t, qs)
}

func TestClient_GenerateQuestions_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantMessage string
		badRequest  bool
	}{
		{
			name:        "bad request",
			status:      http.StatusBadRequest,
			body:        `{"error":"summary must be non-empty"}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "summary must be non-empty",
			badRequest:  true,
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"error":"internal server error"}`,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable\n",
			wantStatus:  http.StatusBadGateway,
			wantMessage: "upstream unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := NewQuestionateClient(server.URL, nil)
			require.NoError(t, err)

			_, err = c.GenerateQuestions(context.Background(), "   ")
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.badRequest, IsBadRequest(err))
		})
	}
}

func TestClient_GenerateQuestions_MissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answers":[]}`))
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, nil)
	require.NoError(t, err)

	_, err = c.GenerateQuestions(context.Background(), "Text.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing questions")
}

func TestClient_GenerateQuestions_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.GenerateQuestions(ctx, "Text.")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"default":"valhalla/t5-small-qg-prepend","backend":"local","models":["valhalla/t5-small-qg-prepend"],"loaded":["valhalla/t5-small-qg-prepend"]}`))
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, nil)
	require.NoError(t, err)

	resp, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "valhalla/t5-small-qg-prepend", resp.Default)
	assert.Equal(t, "local", resp.Backend)
	assert.Equal(t, []string{"valhalla/t5-small-qg-prepend"}, resp.Loaded)
}

func TestClient_Version(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		_, _ = w.Write([]byte(`{"version":"1.2.3","git_commit":"abc","build_time":"now","go_version":"go1.25.0"}`))
	}))
	defer server.Close()

	c, err := NewQuestionateClient(server.URL, nil)
	require.NoError(t, err)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v.Version)
	assert.Equal(t, "abc", v.GitCommit)
}
