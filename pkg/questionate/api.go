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

package questionate

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"go.uber.org/zap"
)

// GenerateQuestionsRequest is the body of POST /api/generate-questions
type GenerateQuestionsRequest struct {
	Summary string `json:"summary"`
}

// ErrorResponse is returned for every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ModelsResponse lists registered generators
type ModelsResponse struct {
	Default string   `json:"default"`
	Backend Backend  `json:"backend,omitempty"`
	Models  []string `json:"models"`
	Loaded  []string `json:"loaded"`
}

// VersionResponse describes the running build
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// internalErrorMessage hides collaborator failures from callers; details are logged.
const internalErrorMessage = "internal server error"

// QuestionateAPI serves the /api routes
type QuestionateAPI struct {
	logger *zap.Logger
	node   *QuestionateNode
}

// NewQuestionateAPI creates a new HTTP handler for the /api routes. It fails
// if the embedded OpenAPI document does not load or validate.
func NewQuestionateAPI(logger *zap.Logger, node *QuestionateNode) (http.Handler, error) {
	doc, err := LoadOpenAPI()
	if err != nil {
		return nil, err
	}
	logger.Debug("OpenAPI document validated",
		zap.String("version", doc.Info.Version),
		zap.Int("paths", doc.Paths.Len()))

	api := &QuestionateAPI{
		logger: logger,
		node:   node,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate-questions", node.handleGenerateQuestions)
	mux.HandleFunc("GET /api/models", api.ListModels)
	mux.HandleFunc("GET /api/version", api.GetVersion)
	mux.HandleFunc("GET /api/openapi.yaml", api.GetOpenAPI)
	return mux, nil
}

// ListModels handles GET /api/models
func (t *QuestionateAPI) ListModels(w http.ResponseWriter, r *http.Request) {
	resp := ModelsResponse{
		Default: t.node.config.Model,
		Backend: t.node.config.Backend,
		Models:  []string{},
		Loaded:  []string{},
	}
	if t.node.registry != nil {
		resp.Models = t.node.registry.List()
		resp.Loaded = t.node.registry.ListLoaded()
	}
	writeJSON(w, t.logger, http.StatusOK, resp)
}

// GetVersion handles GET /api/version
func (t *QuestionateAPI) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, t.logger, http.StatusOK, VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	})
}

// GetOpenAPI handles GET /api/openapi.yaml
func (t *QuestionateAPI) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(OpenAPISpec())
}

// handleGenerateQuestions handles POST /api/generate-questions and its
// unprefixed alias.
func (ln *QuestionateNode) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	start := time.Now()
	logger := ln.logger.With(zap.String("request_id", RequestIDFromContext(r.Context())))
	status := http.StatusOK
	defer func() {
		s := strconv.Itoa(status)
		RecordQuestionRequest(s)
		RecordRequestDuration("generate-questions", ln.config.Model, s, time.Since(start).Seconds())
	}()

	if ln.handler == nil {
		status = http.StatusServiceUnavailable
		writeError(w, logger, status, "generation not available: model not loaded")
		return
	}

	var req GenerateQuestionsRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		status = http.StatusBadRequest
		writeError(w, logger, status, fmt.Sprintf("decoding request: %v", err))
		return
	}

	resp, err := ln.handler.Generate(r.Context(), req.Summary)
	if errors.Is(err, questions.ErrInvalidArgument) {
		status = http.StatusBadRequest
		writeError(w, logger, status, strings.TrimPrefix(err.Error(), questions.ErrInvalidArgument.Error()+": "))
		return
	}
	if err != nil {
		status = http.StatusInternalServerError
		logger.Error("question generation failed",
			zap.String("model", ln.config.Model),
			zap.Int("summary_length", len(req.Summary)),
			zap.Error(err))
		writeError(w, logger, status, internalErrorMessage)
		return
	}

	RecordQuestionsReturned(ln.config.Model, len(resp.Questions))
	logger.Info("question generation request completed",
		zap.String("model", ln.config.Model),
		zap.Int("num_questions", len(resp.Questions)),
		zap.Duration("took", time.Since(start)))

	writeJSON(w, logger, status, resp)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := encoder.NewStreamEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}
