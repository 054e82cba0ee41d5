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
	"cmp"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/hfinference"
	"github.com/antflydb/questionate/pkg/questionate/lib/modelregistry"
	"github.com/antflydb/questionate/pkg/questionate/lib/openaigen"
	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/antflydb/questionate/pkg/questionate/lib/seq2seq"
	"github.com/jellydator/ttlcache/v3"
	khugot "github.com/knights-analytics/hugot"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrModelNotFound is returned by GeneratorRegistry.Get for unregistered names.
var ErrModelNotFound = errors.New("model not found")

// LoaderFunc loads a generator. It is called at most once per successful load.
type LoaderFunc func() (questions.Generator, error)

// GeneratorRegistry loads generators by name on first use and keeps them
// until Close. Concurrent first calls for the same name share one load.
type GeneratorRegistry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	loaders map[string]loaderEntry

	cache   *ttlcache.Cache[string, questions.Generator]
	sfGroup singleflight.Group
}

type loaderEntry struct {
	kind string
	load LoaderFunc
}

// NewGeneratorRegistry creates an empty registry.
func NewGeneratorRegistry(logger *zap.Logger) *GeneratorRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneratorRegistry{
		logger:  logger,
		loaders: make(map[string]loaderEntry),
		// Loaded generators are never evicted, so the cleanup loop is not started.
		cache: ttlcache.New(ttlcache.WithTTL[string, questions.Generator](ttlcache.NoTTL)),
	}
}

// Register adds a named loader. kind labels metrics and logs (e.g., "local").
// Registering an existing name replaces its loader but not a loaded generator.
func (r *GeneratorRegistry) Register(name, kind string, load LoaderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loaderEntry{kind: kind, load: load}
}

// Get returns the generator registered as name, loading it if necessary.
func (r *GeneratorRegistry) Get(name string) (questions.Generator, error) {
	if item := r.cache.Get(name); item != nil {
		return item.Value(), nil
	}

	r.mu.RLock()
	entry, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	v, err, _ := r.sfGroup.Do(name, func() (any, error) {
		if item := r.cache.Get(name); item != nil {
			return item.Value(), nil
		}

		r.logger.Info("Loading generator", zap.String("model", name), zap.String("kind", entry.kind))
		start := time.Now()
		gen, err := entry.load()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		elapsed := time.Since(start)
		RecordModelLoadDuration(name, entry.kind, elapsed.Seconds())
		r.logger.Info("Loaded generator",
			zap.String("model", name),
			zap.String("kind", entry.kind),
			zap.Duration("took", elapsed))

		r.cache.Set(name, gen, ttlcache.NoTTL)
		return gen, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(questions.Generator), nil
}

// Preload loads every named generator, failing on the first error.
func (r *GeneratorRegistry) Preload(names []string) error {
	for _, name := range names {
		if _, err := r.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// List returns all registered names, sorted.
func (r *GeneratorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListLoaded returns only the currently loaded names, sorted.
func (r *GeneratorRegistry) ListLoaded() []string {
	names := r.cache.Keys()
	sort.Strings(names)
	return names
}

// IsLoaded returns whether a generator is currently loaded
func (r *GeneratorRegistry) IsLoaded(name string) bool {
	return r.cache.Has(name)
}

// Close closes every loaded generator.
func (r *GeneratorRegistry) Close() error {
	var errs []error
	for _, name := range r.cache.Keys() {
		item := r.cache.Get(name)
		if item == nil {
			continue
		}
		r.logger.Debug("Closing generator", zap.String("model", name))
		if err := item.Value().Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	r.cache.DeleteAll()
	return errors.Join(errs...)
}

// RegisterBackends registers the generators described by config: every local
// model under ModelsDir for the local backend, or the single remote model
// otherwise. session may be nil for remote backends.
func (r *GeneratorRegistry) RegisterBackends(ctx context.Context, config Config, session *khugot.Session) error {
	switch config.Backend {
	case BackendLocal:
		return r.registerLocal(ctx, config, session)

	case BackendHFInference:
		timeout, err := config.InferenceTimeout()
		if err != nil {
			return err
		}
		name := config.Model
		r.Register(name, string(BackendHFInference), func() (questions.Generator, error) {
			return hfinference.NewClient(name,
				hfinference.WithEndpoint(config.Inference.Endpoint),
				hfinference.WithToken(config.Inference.Token),
				hfinference.WithTimeout(timeout),
				hfinference.WithLogger(r.logger.Named("hfinference")),
			)
		})
		return nil

	case BackendOpenAI:
		name := config.Model
		r.Register(name, string(BackendOpenAI), func() (questions.Generator, error) {
			return openaigen.NewGenerator(openaigen.Config{
				APIKey:  config.OpenAI.APIKey,
				BaseURL: config.OpenAI.BaseURL,
				Model:   cmp.Or(config.OpenAI.Model, name),
			}, r.logger.Named("openai"))
		})
		return nil

	default:
		return fmt.Errorf("unknown backend %q", config.Backend)
	}
}

func (r *GeneratorRegistry) registerLocal(ctx context.Context, config Config, session *khugot.Session) error {
	models, err := modelregistry.DiscoverLocalModels(config.ModelsDir, seq2seq.IsSeq2SeqModel)
	if err != nil {
		return fmt.Errorf("discovering local models: %w", err)
	}

	found := false
	for _, m := range models {
		if m.Name == config.Model {
			found = true
			if !seq2seq.IsQuestionGenerationModel(m.Path) {
				r.logger.Warn("Default model does not look like a question generation model",
					zap.String("model", m.Name),
					zap.String("path", m.Path))
			}
		}
		r.registerLocalModel(m.Name, m.Path, config.PoolSize, session)
	}

	if !found && config.AutoPull {
		ref, err := modelregistry.ParseModelRef(config.Model)
		if err != nil {
			return err
		}
		r.logger.Info("Default model not found locally, pulling from HuggingFace",
			zap.String("model", config.Model),
			zap.String("models_dir", config.ModelsDir))
		hf := modelregistry.NewHuggingFaceClient(
			modelregistry.WithHFToken(config.Inference.Token),
			modelregistry.WithHFLogger(r.logger.Named("pull")),
		)
		modelPath, err := hf.Pull(ctx, ref, config.ModelsDir)
		if err != nil {
			return fmt.Errorf("pulling %s: %w", config.Model, err)
		}
		r.registerLocalModel(ref.FullName(), modelPath, config.PoolSize, session)
	}

	r.logger.Info("Local model discovery complete",
		zap.Int("models_discovered", len(r.List())),
		zap.String("models_dir", config.ModelsDir))
	return nil
}

func (r *GeneratorRegistry) registerLocalModel(name, path string, poolSize int, session *khugot.Session) {
	r.logger.Info("Discovered seq2seq model (not loaded)",
		zap.String("name", name),
		zap.String("path", path))
	r.Register(name, string(BackendLocal), func() (questions.Generator, error) {
		model, err := seq2seq.NewHugotSeq2Seq(path, seq2seq.Options{
			PoolSize: poolSize,
			Session:  session,
		}, r.logger.Named(name))
		if err != nil {
			return nil, err
		}
		cfg := model.Config()
		r.logger.Info("Local seq2seq model ready",
			zap.String("name", name),
			zap.Int("pool_size", model.PoolSize()),
			zap.String("task", cfg.Task),
			zap.String("model_id", cfg.ModelID))
		return model, nil
	})
}
