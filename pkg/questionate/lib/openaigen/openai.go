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

// Package openaigen generates questions with an OpenAI-compatible chat
// completions endpoint.
package openaigen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"go.uber.org/zap"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = openai.ChatModelGPT4_1Mini

// promptEncoding is the BPE used to bound prompts before they are sent.
const promptEncoding = "cl100k_base"

func init() {
	// Embedded BPE ranks, no network access.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var loadEncoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(promptEncoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", promptEncoding, err)
	}
	return enc, nil
})

// truncatePrompt cuts prompt to at most maxTokens BPE tokens. A maxTokens
// of zero or less leaves the prompt alone.
func truncatePrompt(prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		return prompt, nil
	}
	enc, err := loadEncoding()
	if err != nil {
		return "", err
	}
	tokens := enc.Encode(prompt, nil, nil)
	if len(tokens) <= maxTokens {
		return prompt, nil
	}
	// A cut can land inside a multi-byte rune.
	return strings.ToValidUTF8(enc.Decode(tokens[:maxTokens]), ""), nil
}

const systemPrompt = `You write quiz questions about a passage.
The user message starts with "generate questions:" followed by the passage.
Reply with exactly one question about the passage and nothing else.`

var _ questions.Generator = (*Generator)(nil)

// Config contains configuration for the OpenAI-backed generator.
type Config struct {
	APIKey string
	// BaseURL points at a self-hosted OpenAI-compatible server when set.
	BaseURL string
	Model   string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Generator samples questions from a chat model.
type Generator struct {
	client openai.Client
	model  openai.ChatModel
	logger *zap.Logger
}

// NewGenerator builds a new generator instance.
func NewGenerator(cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("api key is required unless a base URL is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Failures go straight back to the caller.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := openai.ChatModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}, nil
}

// Generate requests params.NumReturnSequences completions for prompt and
// returns each choice's content. The prompt is cut to params.MaxInputTokens
// cl100k tokens first. There is no equivalent of no_repeat_ngram_size, so
// that setting is not sent.
func (g *Generator) Generate(ctx context.Context, prompt string, params questions.GenerationParams) ([]string, error) {
	n := max(1, params.NumReturnSequences)

	prompt, err := truncatePrompt(prompt, params.MaxInputTokens)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		N: openai.Int(int64(n)),
	}
	if params.MaxNewTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(params.MaxNewTokens))
	}
	if params.DoSample {
		req.Temperature = openai.Float(float64(params.Temperature))
		req.TopP = openai.Float(float64(params.TopP))
	} else {
		req.Temperature = openai.Float(0)
	}

	g.logger.Debug("Requesting chat completions",
		zap.String("model", string(g.model)),
		zap.Int("n", n))

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating chat completion: %w", err)
	}

	texts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		texts = append(texts, choice.Message.Content)
	}
	return texts, nil
}

// Model returns the chat model name.
func (g *Generator) Model() string {
	return string(g.model)
}

// Close is a no-op.
func (g *Generator) Close() error {
	return nil
}
