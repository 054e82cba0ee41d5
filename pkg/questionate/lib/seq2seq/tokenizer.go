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
	"fmt"
	"os"
	"path/filepath"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
)

// Tokenizer encodes prompts to token IDs and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
}

// LoadTokenizer loads the tokenizer shipped with a model directory.
// tokenizer.json is preferred; T5 exports often only carry a SentencePiece
// model (spiece.model or tokenizer.model).
func LoadTokenizer(modelPath string) (Tokenizer, error) {
	tokenizerJSONPath := filepath.Join(modelPath, "tokenizer.json")
	if _, err := os.Stat(tokenizerJSONPath); err == nil {
		tok, err := hftokenizer.NewFromFile(nil, tokenizerJSONPath)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer.json: %w", err)
		}
		return tok, nil
	}

	for _, name := range []string{"spiece.model", "tokenizer.model"} {
		spModelPath := filepath.Join(modelPath, name)
		if _, err := os.Stat(spModelPath); err != nil {
			continue
		}
		proc, err := esentencepiece.NewProcessorFromPath(spModelPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		return &sentencepieceTokenizer{proc: proc}, nil
	}

	return nil, fmt.Errorf("no tokenizer found in %s (expected tokenizer.json, spiece.model or tokenizer.model)", modelPath)
}

type sentencepieceTokenizer struct {
	proc *esentencepiece.Processor
}

func (t *sentencepieceTokenizer) Encode(text string) []int {
	tokens := t.proc.Encode(text)
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids
}

func (t *sentencepieceTokenizer) Decode(ids []int) string {
	return t.proc.Decode(ids)
}

// Truncate cuts text so it encodes to at most maxTokens tokens, one of which
// is reserved for the end-of-sequence marker the pipeline appends.
// Text that already fits is returned unchanged.
func Truncate(tok Tokenizer, text string, maxTokens int) string {
	if tok == nil || maxTokens <= 1 {
		return text
	}
	budget := maxTokens - 1
	ids := tok.Encode(text)
	if len(ids) <= budget {
		return text
	}
	return tok.Decode(ids[:budget])
}
