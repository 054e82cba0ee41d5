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

package questions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestedCount(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{name: "no periods", text: "A passage without any sentence terminator", expected: 3},
		{name: "one period", text: "One sentence.", expected: 3},
		{name: "three periods", text: "One. Two. Three.", expected: 3},
		{name: "four periods", text: "One. Two. Three. Four.", expected: 4},
		{name: "five periods", text: strings.Repeat("Sentence. ", 5), expected: 5},
		{name: "seven periods", text: strings.Repeat("Sentence. ", 7), expected: 7},
		{name: "ten periods", text: strings.Repeat("Sentence. ", 10), expected: 7},
		{name: "decimals count", text: "Pi is 3.14 and e is 2.71", expected: 3},
		{name: "ellipsis counts", text: "Wait.....", expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RequestedCount(tt.text))
		})
	}
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 1, CountSentences("no periods here"))
	assert.Equal(t, 1, CountSentences("exactly one."))
	assert.Equal(t, 2, CountSentences("Water boils at 100C. It freezes at 0C."))
	assert.Equal(t, 3, CountSentences("Dr. Smith met Mr. Jones."))
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "generate questions: Water is wet.", BuildPrompt("Water is wet."))
}

func TestFilterCandidates(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		expected   []string
	}{
		{
			name:       "duplicates dropped in order",
			candidates: []string{"What is X?", "What is X?", "Why Y?"},
			expected:   []string{"What is X?", "Why Y?"},
		},
		{
			name:       "short candidates dropped",
			candidates: []string{"Why?", "What is X?"},
			expected:   []string{"What is X?"},
		},
		{
			name:       "exactly five characters dropped",
			candidates: []string{"Why Y", "Why Y?"},
			expected:   []string{"Why Y?"},
		},
		{
			name:       "trimmed before comparison",
			candidates: []string{"  What is X?  ", "What is X?\n", "\tHow so now?"},
			expected:   []string{"What is X?", "How so now?"},
		},
		{
			name:       "ascii separators trimmed",
			candidates: []string{"\x1fWhat is X?\x1e", "\x1cWhat is X?", "\x1dWhy?\x1d"},
			expected:   []string{"What is X?"},
		},
		{
			name:       "whitespace padding does not count toward length",
			candidates: []string{"   Why?   "},
			expected:   []string{},
		},
		{
			name:       "length counts characters not bytes",
			candidates: []string{"¿Qué?", "¿Qué es?"},
			expected:   []string{"¿Qué es?"},
		},
		{
			name:       "exact match only",
			candidates: []string{"What is X?", "what is x?"},
			expected:   []string{"What is X?", "what is x?"},
		},
		{
			name:       "nil input",
			candidates: nil,
			expected:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FilterCandidates(tt.candidates))
		})
	}
}

func TestFilterCandidates_Idempotent(t *testing.T) {
	once := FilterCandidates([]string{"What is X?", " What is X?", "Why?", "Where is Z?", "Where is Z?"})
	twice := FilterCandidates(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"What is X?", "Where is Z?"}, twice)
}

func TestHandler_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("EndToEndScenario", func(t *testing.T) {
		gen := &FakeGenerator{Outputs: []string{
			"At what temperature does water boil?",
			" At what temperature does water freeze? ",
			"What happens to water at 100C?",
		}}
		h := NewHandler(gen)

		resp, err := h.Generate(ctx, "Water boils at 100C. It freezes at 0C.")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"At what temperature does water boil?",
			"At what temperature does water freeze?",
			"What happens to water at 100C?",
		}, resp.Questions)

		calls := gen.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "generate questions: Water boils at 100C. It freezes at 0C.", calls[0].Prompt)
		assert.Equal(t, 3, calls[0].Params.NumReturnSequences)
	})

	t.Run("PassesFixedSamplingParams", func(t *testing.T) {
		gen := &FakeGenerator{}
		h := NewHandler(gen)

		_, err := h.Generate(ctx, strings.Repeat("A fact. ", 10))
		require.NoError(t, err)

		calls := gen.Calls()
		require.Len(t, calls, 1)
		p := calls[0].Params
		assert.Equal(t, 512, p.MaxInputTokens)
		assert.Equal(t, 64, p.MaxNewTokens)
		assert.True(t, p.DoSample)
		assert.InDelta(t, 0.9, p.TopP, 1e-6)
		assert.InDelta(t, 1.2, p.Temperature, 1e-6)
		assert.Equal(t, 2, p.NoRepeatNGramSize)
		assert.Equal(t, 7, p.NumReturnSequences)
	})

	t.Run("TrimsSummaryBeforePrompting", func(t *testing.T) {
		gen := &FakeGenerator{}
		h := NewHandler(gen)

		_, err := h.Generate(ctx, "  \n Cells divide. \t")
		require.NoError(t, err)
		assert.Equal(t, "generate questions: Cells divide.", gen.Calls()[0].Prompt)

		_, err = h.Generate(ctx, "\x1e\x1fCells divide.\x1c")
		require.NoError(t, err)
		assert.Equal(t, "generate questions: Cells divide.", gen.Calls()[1].Prompt)
	})

	t.Run("EmptySummaryIsInvalidArgument", func(t *testing.T) {
		for _, summary := range []string{"", "   ", "\n\t ", "\x1c\x1d ", "\u00a0\x1f\u2028"} {
			gen := &FakeGenerator{Outputs: []string{"Should never be used?"}}
			h := NewHandler(gen)

			resp, err := h.Generate(ctx, summary)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), "summary must be non-empty")
			assert.Empty(t, gen.Calls(), "generator must not be called for %q", summary)
		}
	})

	t.Run("GeneratorErrorPropagatesUnchanged", func(t *testing.T) {
		boom := errors.New("inference failed")
		gen := &FakeGenerator{Err: boom}
		h := NewHandler(gen)

		resp, err := h.Generate(ctx, "Some text.")
		assert.Nil(t, resp)
		assert.Same(t, boom, err)
		assert.NotErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("EmptyOutputsYieldEmptyList", func(t *testing.T) {
		gen := &FakeGenerator{Outputs: []string{"Why?", "", "   "}}
		h := NewHandler(gen)

		resp, err := h.Generate(ctx, "Short text.")
		require.NoError(t, err)
		require.NotNil(t, resp.Questions)
		assert.Empty(t, resp.Questions)
	})
}
