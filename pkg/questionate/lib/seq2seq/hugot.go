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

package seq2seq

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/antflydb/questionate/pkg/questionate/lib/hugot"
	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	khugot "github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var _ questions.Generator = (*HugotSeq2Seq)(nil)

// Options configures a HugotSeq2Seq.
type Options struct {
	// PoolSize is the number of pipelines available for concurrent requests.
	// 0 uses seq2seq_config.json's pool_size, then runtime.NumCPU().
	PoolSize int
	// Params fixes the decoding settings the pipelines are built with.
	// Zero value uses questions.DefaultParams().
	Params *questions.GenerationParams
	// Session, when non-nil, is shared and not destroyed on Close.
	Session *khugot.Session
}

// seq2seqRunner runs one batch through a Seq2Seq pipeline and returns the
// generated sequences for each input, in input order.
type seq2seqRunner interface {
	Run(inputs []string) ([][]string, error)
	Destroy() error
}

type hugotRunner struct {
	pipeline *pipelines.Seq2SeqPipeline
}

func (r hugotRunner) Run(inputs []string) ([][]string, error) {
	output, err := r.pipeline.RunPipeline(inputs)
	if err != nil {
		return nil, err
	}
	return output.GeneratedTexts, nil
}

func (r hugotRunner) Destroy() error {
	return r.pipeline.Destroy()
}

// HugotSeq2Seq generates text with an encoder-decoder model through a pool of
// Hugot Seq2Seq pipelines. Each request acquires a pipeline slot via semaphore.
type HugotSeq2Seq struct {
	session       *khugot.Session
	sessionShared bool
	pipelines     []seq2seqRunner
	sem           *semaphore.Weighted
	nextPipeline  atomic.Uint64
	tokenizer     Tokenizer
	params        questions.GenerationParams
	config        Config
	logger        *zap.Logger

	// mu is held for reading by in-flight Generate calls and for writing by Close.
	mu     sync.RWMutex
	closed bool
}

// NewHugotSeq2Seq loads the model at modelPath.
func NewHugotSeq2Seq(modelPath string, opts Options, logger *zap.Logger) (*HugotSeq2Seq, error) {
	if modelPath == "" {
		return nil, errors.New("model path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := LoadConfig(modelPath)
	if err != nil {
		logger.Warn("Ignoring invalid seq2seq config", zap.String("modelPath", modelPath), zap.Error(err))
	}

	params := questions.DefaultParams()
	if opts.Params != nil {
		params = *opts.Params
	}

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = config.PoolSize
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}

	tok, err := LoadTokenizer(modelPath)
	if err != nil {
		// The pipeline still truncates internally; we only lose exact control of the budget.
		logger.Warn("No tokenizer for prompt truncation", zap.String("modelPath", modelPath), zap.Error(err))
	}

	logger.Info("Initializing Hugot Seq2Seq model",
		zap.String("modelPath", modelPath),
		zap.Int("poolSize", poolSize),
		zap.String("backend", hugot.BackendName()))

	if params.NoRepeatNGramSize > 0 {
		logger.Info("no_repeat_ngram_size is not supported by the local pipeline; repeated n-grams are not blocked",
			zap.Int("no_repeat_ngram_size", params.NoRepeatNGramSize))
	}

	session, err := hugot.NewSessionOrUseExisting(opts.Session)
	if err != nil {
		return nil, fmt.Errorf("creating hugot session: %w", err)
	}
	sessionShared := opts.Session != nil

	m := &HugotSeq2Seq{
		session:       session,
		sessionShared: sessionShared,
		pipelines:     make([]seq2seqRunner, 0, poolSize),
		sem:           semaphore.NewWeighted(int64(poolSize)),
		tokenizer:     tok,
		params:        params,
		config:        config,
		logger:        logger,
	}

	for i := range poolSize {
		pipelineOptions := []khugot.Seq2SeqOption{
			pipelines.WithSeq2SeqMaxTokens(params.MaxNewTokens),
			// Sequences per input stay at 1; Generate batches the prompt instead.
			pipelines.WithNumReturnSequences(1),
		}
		if params.DoSample && params.TopP > 0 && params.Temperature > 0 {
			pipelineOptions = append(pipelineOptions, pipelines.WithSampling(params.TopP, params.Temperature))
		}

		pipeline, err := khugot.NewPipeline(session, khugot.Seq2SeqConfig{
			ModelPath: modelPath,
			Name:      fmt.Sprintf("seq2seq:%s:%d", filepath.Base(modelPath), i),
			Options:   pipelineOptions,
		})
		if err != nil {
			_ = m.destroy()
			return nil, fmt.Errorf("creating seq2seq pipeline %d: %w", i, err)
		}
		m.pipelines = append(m.pipelines, hugotRunner{pipeline: pipeline})
	}

	logger.Info("Seq2Seq model initialization complete",
		zap.String("modelPath", modelPath),
		zap.Int("max_new_tokens", params.MaxNewTokens),
		zap.Bool("do_sample", params.DoSample))

	return m, nil
}

// Generate samples candidates for prompt. The prompt is truncated to
// params.MaxInputTokens and run as a batch of params.NumReturnSequences copies,
// so each copy yields one independently sampled sequence.
//
// Decoding settings are fixed when the pipelines are built; only
// MaxInputTokens and NumReturnSequences are read per call.
func (h *HugotSeq2Seq) Generate(ctx context.Context, prompt string, params questions.GenerationParams) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrModelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxInput := params.MaxInputTokens
	if maxInput <= 0 {
		maxInput = h.params.MaxInputTokens
	}
	input := Truncate(h.tokenizer, prompt, maxInput)

	n := max(1, params.NumReturnSequences)
	inputs := slices.Repeat([]string{input}, n)

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring pipeline slot: %w", err)
	}
	defer h.sem.Release(1)

	idx := int(h.nextPipeline.Add(1) % uint64(len(h.pipelines)))
	h.logger.Debug("Starting Seq2Seq generation",
		zap.Int("pipelineIndex", idx),
		zap.Int("num_return_sequences", n),
		zap.Bool("truncated", input != prompt))

	generated, err := h.pipelines[idx].Run(inputs)
	if err != nil {
		return nil, fmt.Errorf("running seq2seq pipeline: %w", err)
	}

	texts := make([]string, 0, n)
	for _, seqs := range generated {
		texts = append(texts, seqs...)
	}

	h.logger.Debug("Seq2Seq generation completed",
		zap.Int("pipelineIndex", idx),
		zap.Int("total_outputs", len(texts)))

	return texts, nil
}

// Config returns the model's seq2seq_config.json contents.
func (h *HugotSeq2Seq) Config() Config {
	return h.config
}

// PoolSize returns the number of pipelines.
func (h *HugotSeq2Seq) PoolSize() int {
	return len(h.pipelines)
}

// Close waits for in-flight requests and releases the pipelines. It is
// idempotent; later Generate calls return ErrModelClosed.
func (h *HugotSeq2Seq) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.destroy()
}

func (h *HugotSeq2Seq) destroy() error {
	var errs []error
	for i, p := range h.pipelines {
		if err := p.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroying pipeline %d: %w", i, err))
		}
	}
	h.pipelines = nil
	if h.session != nil && !h.sessionShared {
		h.logger.Info("Destroying Hugot session (owned by this Seq2Seq model)")
		if err := h.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroying session: %w", err))
		}
	}
	return errors.Join(errs...)
}
