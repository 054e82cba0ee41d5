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

// Package questionate serves question generation over HTTP.
package questionate

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/hugot"
	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/google/uuid"
	khugot "github.com/knights-analytics/hugot"
	"go.uber.org/zap"
)

// QuestionateNode serves question generation with the default generator.
type QuestionateNode struct {
	logger   *zap.Logger
	config   Config
	registry *GeneratorRegistry

	// handler is set by Start once the default generator is loaded.
	handler *questions.Handler
	ready   atomic.Bool
}

// NewQuestionateNode creates a node. Call Start before serving requests.
func NewQuestionateNode(logger *zap.Logger, config Config, registry *GeneratorRegistry) *QuestionateNode {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionateNode{
		logger:   logger,
		config:   config,
		registry: registry,
	}
}

// Start loads the default generator and marks the node ready.
func (ln *QuestionateNode) Start() error {
	if err := ln.registry.Preload([]string{ln.config.Model}); err != nil {
		return err
	}
	gen, err := ln.registry.Get(ln.config.Model)
	if err != nil {
		return err
	}
	ln.handler = questions.NewHandler(instrumentedGenerator{Generator: gen, model: ln.config.Model})
	ln.ready.Store(true)
	return nil
}

// Ready reports whether the default generator is loaded.
func (ln *QuestionateNode) Ready() bool {
	return ln.ready.Load()
}

// corsMiddleware adds permissive CORS headers for the Questionate API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-Id, Accept, Origin")
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// requestIDMiddleware propagates the caller's X-Request-Id or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFromContext returns the request ID set by the middleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRootHandler builds the full HTTP surface: health checks, the /api
// routes, and the unprefixed /generate-questions alias.
func NewRootHandler(logger *zap.Logger, node *QuestionateNode) (http.Handler, error) {
	api, err := NewQuestionateAPI(logger, node)
	if err != nil {
		return nil, err
	}
	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", node.handleHealthz)
	rootMux.HandleFunc("GET /readyz", node.handleReadyz)
	rootMux.HandleFunc("POST /generate-questions", node.handleGenerateQuestions)
	rootMux.Handle("/api/", api)
	return corsMiddleware(requestIDMiddleware(rootMux)), nil
}

// NewHugotSession applies the configured runtime priority and creates the
// session shared by every local model.
func NewHugotSession(config Config) (*khugot.Session, error) {
	specs, err := config.HugotBackends()
	if err != nil {
		return nil, err
	}
	hugot.Configure(specs)
	return hugot.NewSession()
}

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// RunAsQuestionate runs a questionate node until ctx is cancelled.
// If readyC is non-nil, it will be closed when the server is ready to accept requests.
func RunAsQuestionate(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) {
	zl = zl.Named("questionate")

	if err := config.Validate(); err != nil {
		zl.Fatal("Invalid configuration", zap.Error(err))
	}
	zl.Info("Starting questionate node", zap.Any("config", config))

	u, err := url.Parse(config.ApiUrl)
	if err != nil {
		zl.Fatal("Invalid API URL", zap.String("url", config.ApiUrl), zap.Error(err))
	}

	// ONNX Runtime allows only one session at a time, so every local model shares it.
	var sharedSession *khugot.Session
	if config.Backend == BackendLocal {
		sharedSession, err = NewHugotSession(config)
		if err != nil {
			zl.Fatal("Failed to create shared Hugot session",
				zap.Strings("backend_priority", config.BackendPriority),
				zap.Error(err))
		}
		defer func() { _ = sharedSession.Destroy() }()
		zl.Info("Created shared Hugot session", zap.String("backend", hugot.BackendName()))
	}

	registry := NewGeneratorRegistry(zl.Named("registry"))
	defer func() {
		if err := registry.Close(); err != nil {
			zl.Warn("Error closing generators", zap.Error(err))
		}
	}()

	if err := registry.RegisterBackends(ctx, config, sharedSession); err != nil {
		zl.Fatal("Failed to register generators", zap.Error(err))
	}

	node := NewQuestionateNode(zl, config, registry)
	if err := node.Start(); err != nil {
		zl.Fatal("Failed to load default model",
			zap.String("model", config.Model),
			zap.String("backend", string(config.Backend)),
			zap.Error(err))
	}

	handler, err := NewRootHandler(zl, node)
	if err != nil {
		zl.Fatal("Failed to build API handler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              u.Host,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       540 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Questionate's api server starting", zap.String("address", config.ApiUrl))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if readyC != nil {
		close(readyC)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	srv.SetKeepAlivesEnabled(false)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped", zap.String("address", u.Host))
}
