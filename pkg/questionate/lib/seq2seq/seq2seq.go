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

// Package seq2seq runs encoder-decoder question generation models locally
// through Hugot.
package seq2seq

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigFilename is the optional per-model configuration file.
const ConfigFilename = "seq2seq_config.json"

// ErrModelClosed is returned by Generate after Close.
var ErrModelClosed = errors.New("seq2seq model is closed")

// Config holds optional per-model settings read from seq2seq_config.json.
type Config struct {
	// ModelID is the original HuggingFace model ID.
	ModelID string `json:"model_id"`
	// Task indicates the model's intended use (e.g., "question_generation").
	Task string `json:"task"`
	// InputFormat documents the expected prompt format.
	InputFormat string `json:"input_format"`
	// PoolSize overrides the number of pipelines kept for concurrent use.
	PoolSize int `json:"pool_size"`
}

// LoadConfig reads seq2seq_config.json from modelPath.
// A missing file yields a zero Config and no error.
func LoadConfig(modelPath string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(modelPath, ConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", ConfigFilename, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFilename, err)
	}
	return cfg, nil
}

// IsSeq2SeqModel checks if the model path contains an encoder-decoder ONNX export.
// Both the split layout (encoder.onnx, decoder-init.onnx, decoder.onnx) and the
// Optimum layout (encoder_model.onnx, decoder_model*.onnx) are accepted.
func IsSeq2SeqModel(modelPath string) bool {
	if allExist(modelPath, "encoder.onnx", "decoder-init.onnx", "decoder.onnx") {
		return true
	}
	if !allExist(modelPath, "encoder_model.onnx") {
		return false
	}
	matches, _ := filepath.Glob(filepath.Join(modelPath, "decoder_model*.onnx"))
	return len(matches) > 0
}

// IsQuestionGenerationModel reports whether a seq2seq model is meant for
// question generation, from its config task or, failing that, its name.
func IsQuestionGenerationModel(modelPath string) bool {
	if !IsSeq2SeqModel(modelPath) {
		return false
	}
	cfg, err := LoadConfig(modelPath)
	if err != nil {
		return false
	}
	if cfg.Task != "" {
		return cfg.Task == "question_generation"
	}
	name := strings.ToLower(filepath.Base(modelPath))
	for _, hint := range []string{"qg", "question", "squad"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func allExist(dir string, files ...string) bool {
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}
