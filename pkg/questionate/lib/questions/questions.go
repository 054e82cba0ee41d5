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

// Package questions turns a short passage into a deduplicated list of
// quiz-style questions using a text-generation collaborator.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// PromptPrefix is the task instruction expected by question generation models.
	PromptPrefix = "generate questions: "

	// MinRequested and MaxRequested bound the number of sampled candidates.
	MinRequested = 3
	MaxRequested = 7

	// MinQuestionLength is the exclusive lower bound on a kept question's length.
	MinQuestionLength = 5
)

// ErrInvalidArgument is returned when the request fails validation.
var ErrInvalidArgument = errors.New("invalid argument")

// Response is the result of a question generation request.
type Response struct {
	Questions []string `json:"questions"`
}

// Handler shapes requests for a Generator and filters what it returns.
// It holds no mutable state and may be shared across goroutines.
type Handler struct {
	generator Generator
	params    GenerationParams
}

// NewHandler creates a Handler that delegates generation to g.
func NewHandler(g Generator) *Handler {
	return &Handler{
		generator: g,
		params:    DefaultParams(),
	}
}

// Generate produces questions about summary.
//
// An empty or whitespace-only summary fails with ErrInvalidArgument before the
// generator is called. Generator errors are returned unchanged.
func (h *Handler) Generate(ctx context.Context, summary string) (*Response, error) {
	text := trimSpace(summary)
	if text == "" {
		return nil, fmt.Errorf("%w: summary must be non-empty", ErrInvalidArgument)
	}

	params := h.params
	params.NumReturnSequences = RequestedCount(text)

	candidates, err := h.generator.Generate(ctx, BuildPrompt(text), params)
	if err != nil {
		return nil, err
	}

	return &Response{Questions: FilterCandidates(candidates)}, nil
}

// trimSpace strips leading and trailing whitespace, counting the ASCII
// file, group, record and unit separators (U+001C..U+001F) as whitespace.
func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= '\x1c' && r <= '\x1f')
}

// CountSentences approximates the sentence count of text by counting periods.
// Abbreviations and decimals are counted too. The result is at least 1.
func CountSentences(text string) int {
	return max(1, strings.Count(text, "."))
}

// RequestedCount returns how many candidates to sample for text, clamped to
// [MinRequested, MaxRequested].
func RequestedCount(text string) int {
	return min(max(MinRequested, CountSentences(text)), MaxRequested)
}

// BuildPrompt prefixes text with the question generation instruction.
func BuildPrompt(text string) string {
	return PromptPrefix + text
}

// FilterCandidates trims candidates and keeps, in order, the first occurrence
// of each one longer than MinQuestionLength characters.
func FilterCandidates(candidates []string) []string {
	questions := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		q := trimSpace(c)
		if utf8.RuneCountInString(q) <= MinQuestionLength {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		questions = append(questions, q)
	}
	return questions
}
