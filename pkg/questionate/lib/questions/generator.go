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

import "context"

// Sampling constants shared by every request.
const (
	// MaxInputTokens is the prompt truncation limit, in model tokens.
	MaxInputTokens = 512
	// MaxNewTokens caps the length of each generated sequence.
	MaxNewTokens = 64
	// TopP is the nucleus sampling cumulative-probability threshold.
	TopP float32 = 0.9
	// Temperature is the sampling temperature.
	Temperature float32 = 1.2
	// NoRepeatNGramSize forbids repeating any n-gram of this size within one output.
	NoRepeatNGramSize = 2
)

// GenerationParams is the parameter bundle handed to a Generator.
type GenerationParams struct {
	// MaxInputTokens truncates the encoded prompt.
	MaxInputTokens int `json:"max_input_tokens"`
	// MaxNewTokens is the maximum number of tokens generated per sequence.
	MaxNewTokens int `json:"max_new_tokens"`
	// DoSample enables sampling instead of greedy decoding.
	DoSample bool `json:"do_sample"`
	// TopP is the nucleus sampling threshold (used when DoSample=true).
	TopP float32 `json:"top_p"`
	// Temperature controls randomness (used when DoSample=true).
	Temperature float32 `json:"temperature"`
	// NoRepeatNGramSize blocks repeated n-grams (0 disables).
	NoRepeatNGramSize int `json:"no_repeat_ngram_size"`
	// NumReturnSequences is how many independently sampled candidates to return.
	NumReturnSequences int `json:"num_return_sequences"`
}

// DefaultParams returns the fixed sampling configuration with a single return sequence.
func DefaultParams() GenerationParams {
	return GenerationParams{
		MaxInputTokens:     MaxInputTokens,
		MaxNewTokens:       MaxNewTokens,
		DoSample:           true,
		TopP:               TopP,
		Temperature:        Temperature,
		NoRepeatNGramSize:  NoRepeatNGramSize,
		NumReturnSequences: 1,
	}
}

// Generator is the text-generation collaborator.
//
// Generate returns decoded candidate texts, one per requested sequence.
// Candidates carry no uniqueness or quality guarantee. Implementations must
// be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) ([]string, error)

	// Close releases any resources held by the generator.
	Close() error
}
