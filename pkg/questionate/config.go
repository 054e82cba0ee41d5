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
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/hugot"
	"github.com/antflydb/questionate/pkg/questionate/lib/openaigen"
)

// Backend selects where question generation runs.
type Backend string

const (
	// BackendLocal runs a seq2seq ONNX model from models_dir through Hugot.
	BackendLocal Backend = "local"
	// BackendHFInference calls the hosted Hugging Face inference API.
	BackendHFInference Backend = "hf-inference"
	// BackendOpenAI calls an OpenAI-compatible chat completions endpoint.
	BackendOpenAI Backend = "openai"
)

const (
	// DefaultBackend is used when Config.Backend is empty.
	DefaultBackend = BackendHFInference

	// DefaultModel is the hosted question generation model used by the
	// hf-inference backend when none is configured. The Hub repository ships
	// PyTorch weights only, so the local backend needs an ONNX export instead
	// (see ErrLocalModelRequired).
	DefaultModel = "valhalla/t5-small-qg-prepend"
)

// ErrLocalModelRequired is returned when the local backend has no model name.
var ErrLocalModelRequired = errors.New("model is required for the local backend: export a question generation model to ONNX " +
	"(e.g. optimum-cli export onnx --model " + DefaultModel + " --task text2text-generation <dir>) " +
	"or pull an existing export with 'questionate pull <owner/name>', then set model to it")

// InferenceConfig configures the hosted inference backend.
type InferenceConfig struct {
	Endpoint string `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Token    string `json:"-" mapstructure:"token"`
	// Timeout is a Go duration string (e.g., "30s").
	Timeout string `json:"timeout,omitempty" mapstructure:"timeout"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`
	APIKey  string `json:"-" mapstructure:"api_key"`
	Model   string `json:"model,omitempty" mapstructure:"model"`
}

// Config configures a questionate node.
type Config struct {
	// ApiUrl is the listen URL; only its host:port is used.
	ApiUrl string `json:"api_url" mapstructure:"api_url"`
	// ModelsDir holds local models as owner/name directories.
	ModelsDir string `json:"models_dir,omitempty" mapstructure:"models_dir"`
	// Model is the default generator name.
	Model   string  `json:"model,omitempty" mapstructure:"model"`
	Backend Backend `json:"backend,omitempty" mapstructure:"backend"`
	// BackendPriority orders Hugot runtimes, e.g. ["onnx:cuda", "go"].
	BackendPriority []string `json:"backend_priority,omitempty" mapstructure:"backend_priority"`
	// Gpu enables CUDA for the ONNX runtime when no device is given in BackendPriority.
	Gpu bool `json:"gpu,omitempty" mapstructure:"gpu"`
	// PoolSize is the number of local pipelines (0 = number of CPUs).
	PoolSize int `json:"pool_size,omitempty" mapstructure:"pool_size"`
	// AutoPull downloads the default local model from HuggingFace when missing.
	AutoPull bool `json:"auto_pull,omitempty" mapstructure:"auto_pull"`

	Inference InferenceConfig `json:"inference,omitempty" mapstructure:"inference"`
	OpenAI    OpenAIConfig    `json:"openai,omitempty" mapstructure:"openai"`
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.ApiUrl == "" {
		return errors.New("api_url is required")
	}
	u, err := url.Parse(c.ApiUrl)
	if err != nil {
		return fmt.Errorf("invalid api_url %q: %w", c.ApiUrl, err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api_url %q: missing host", c.ApiUrl)
	}

	if c.Backend == "" {
		c.Backend = DefaultBackend
	}

	switch c.Backend {
	case BackendLocal:
		if c.ModelsDir == "" {
			return errors.New("models_dir is required for the local backend")
		}
		if c.Model == "" {
			return ErrLocalModelRequired
		}
		if _, err := c.HugotBackends(); err != nil {
			return err
		}
	case BackendHFInference:
		if _, err := c.InferenceTimeout(); err != nil {
			return err
		}
		if c.Model == "" {
			c.Model = DefaultModel
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return errors.New("openai.api_key or openai.base_url is required for the openai backend")
		}
		if c.Model == "" {
			c.Model = c.OpenAI.Model
		}
		if c.Model == "" {
			c.Model = string(openaigen.DefaultModel)
		}
	default:
		return fmt.Errorf("unknown backend %q (valid: %s, %s, %s)", c.Backend, BackendLocal, BackendHFInference, BackendOpenAI)
	}

	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", c.PoolSize)
	}
	return nil
}

// InferenceTimeout parses Inference.Timeout; empty means zero.
func (c *Config) InferenceTimeout() (time.Duration, error) {
	if c.Inference.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Inference.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid inference.timeout %q: %w", c.Inference.Timeout, err)
	}
	return d, nil
}

// HugotBackends parses BackendPriority, applying Gpu to an ONNX entry
// without an explicit device.
func (c *Config) HugotBackends() ([]hugot.BackendSpec, error) {
	specs, err := hugot.ParseBackendPriority(c.BackendPriority)
	if err != nil {
		return nil, err
	}
	if c.Gpu {
		for i := range specs {
			if specs[i].Backend == hugot.BackendONNX && specs[i].Device == hugot.DeviceAuto {
				specs[i].Device = hugot.DeviceCUDA
			}
		}
	}
	return specs, nil
}
