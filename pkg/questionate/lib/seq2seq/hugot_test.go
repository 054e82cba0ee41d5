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
	"sync"
	"testing"

	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"
)

// fakeRunner answers each input with one sequence tagged by its position.
type fakeRunner struct {
	name string
	err  error

	mu        sync.Mutex
	batches   [][]string
	destroyed bool
}

func (f *fakeRunner) Run(inputs []string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), inputs...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]string, len(inputs))
	for i := range inputs {
		out[i] = []string{fmt.Sprintf("%s question %d?", f.name, i)}
	}
	return out, nil
}

func (f *fakeRunner) Destroy() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return nil
}

func (f *fakeRunner) Batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func newTestSeq2Seq(t *testing.T, tok Tokenizer, runners ...*fakeRunner) *HugotSeq2Seq {
	t.Helper()
	h := &HugotSeq2Seq{
		sem:       semaphore.NewWeighted(int64(len(runners))),
		tokenizer: tok,
		params:    questions.DefaultParams(),
		logger:    zaptest.NewLogger(t),
	}
	for _, r := range runners {
		h.pipelines = append(h.pipelines, r)
	}
	return h
}

func TestHugotSeq2Seq_Generate(t *testing.T) {
	t.Run("BatchesPromptPerRequestedSequence", func(t *testing.T) {
		runner := &fakeRunner{name: "p0"}
		h := newTestSeq2Seq(t, nil, runner)

		params := questions.DefaultParams()
		params.NumReturnSequences = 5
		out, err := h.Generate(context.Background(), "generate questions: Water boils.", params)
		require.NoError(t, err)

		batches := runner.Batches()
		require.Len(t, batches, 1)
		assert.Equal(t, []string{
			"generate questions: Water boils.",
			"generate questions: Water boils.",
			"generate questions: Water boils.",
			"generate questions: Water boils.",
			"generate questions: Water boils.",
		}, batches[0])
		assert.Equal(t, []string{
			"p0 question 0?",
			"p0 question 1?",
			"p0 question 2?",
			"p0 question 3?",
			"p0 question 4?",
		}, out)
	})

	t.Run("FlattensMultipleSequencesInOrder", func(t *testing.T) {
		runner := &multiRunner{}
		h := &HugotSeq2Seq{
			sem:       semaphore.NewWeighted(1),
			pipelines: []seq2seqRunner{runner},
			params:    questions.DefaultParams(),
			logger:    zaptest.NewLogger(t),
		}

		params := questions.DefaultParams()
		params.NumReturnSequences = 2
		out, err := h.Generate(context.Background(), "generate questions: x", params)
		require.NoError(t, err)
		assert.Equal(t, []string{"a0", "a1", "b0", "b1"}, out)
	})

	t.Run("TruncatesBeforeBatching", func(t *testing.T) {
		runner := &fakeRunner{name: "p0"}
		h := newTestSeq2Seq(t, &wordTokenizer{}, runner)

		params := questions.DefaultParams()
		params.MaxInputTokens = 4
		params.NumReturnSequences = 3
		_, err := h.Generate(context.Background(), "generate questions: Water boils at 100C.", params)
		require.NoError(t, err)

		batches := runner.Batches()
		require.Len(t, batches, 1)
		assert.Equal(t, []string{
			"generate questions: Water",
			"generate questions: Water",
			"generate questions: Water",
		}, batches[0])
	})

	t.Run("AtLeastOneSequence", func(t *testing.T) {
		runner := &fakeRunner{name: "p0"}
		h := newTestSeq2Seq(t, nil, runner)

		params := questions.DefaultParams()
		params.NumReturnSequences = 0
		out, err := h.Generate(context.Background(), "generate questions: x", params)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("RoundRobinAcrossPipelines", func(t *testing.T) {
		first, second := &fakeRunner{name: "p0"}, &fakeRunner{name: "p1"}
		h := newTestSeq2Seq(t, nil, first, second)

		params := questions.DefaultParams()
		params.NumReturnSequences = 3
		for range 4 {
			_, err := h.Generate(context.Background(), "generate questions: x", params)
			require.NoError(t, err)
		}
		assert.Len(t, first.Batches(), 2)
		assert.Len(t, second.Batches(), 2)
	})

	t.Run("PipelineErrorWrapped", func(t *testing.T) {
		boom := errors.New("ort failure")
		h := newTestSeq2Seq(t, nil, &fakeRunner{err: boom})

		_, err := h.Generate(context.Background(), "generate questions: x", questions.DefaultParams())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "running seq2seq pipeline")
	})

	t.Run("CanceledContextSkipsPipeline", func(t *testing.T) {
		runner := &fakeRunner{name: "p0"}
		h := newTestSeq2Seq(t, nil, runner)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.Generate(ctx, "generate questions: x", questions.DefaultParams())
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, runner.Batches())
	})
}

func TestHugotSeq2Seq_CloseDestroysPipelines(t *testing.T) {
	first, second := &fakeRunner{name: "p0"}, &fakeRunner{name: "p1"}
	h := newTestSeq2Seq(t, nil, first, second)
	assert.Equal(t, 2, h.PoolSize())

	require.NoError(t, h.Close())
	assert.True(t, first.destroyed)
	assert.True(t, second.destroyed)
	assert.Zero(t, h.PoolSize())

	_, err := h.Generate(context.Background(), "generate questions: x", questions.DefaultParams())
	assert.ErrorIs(t, err, ErrModelClosed)
	assert.NoError(t, h.Close())
}

// multiRunner returns two sequences per input.
type multiRunner struct{}

func (multiRunner) Run(inputs []string) ([][]string, error) {
	out := make([][]string, len(inputs))
	for i := range inputs {
		prefix := string(rune('a' + i))
		out[i] = []string{prefix + "0", prefix + "1"}
	}
	return out, nil
}

func (multiRunner) Destroy() error { return nil }
