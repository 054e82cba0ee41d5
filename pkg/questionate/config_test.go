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
	"testing"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/hugot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "default backend",
			config: Config{ApiUrl: "http://localhost:8000"},
		},
		{
			name:   "local with model",
			config: Config{ApiUrl: "http://localhost:8000", Backend: BackendLocal, ModelsDir: "/models", Model: "owner/t5-qg-onnx"},
		},
		{
			name:    "local without model",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: BackendLocal, ModelsDir: "/models"},
			wantErr: "model is required for the local backend",
		},
		{
			name:    "missing api url",
			config:  Config{},
			wantErr: "api_url is required",
		},
		{
			name:    "api url without host",
			config:  Config{ApiUrl: "localhost"},
			wantErr: "missing host",
		},
		{
			name:    "local without models dir",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: BackendLocal, Model: "owner/t5-qg-onnx"},
			wantErr: "models_dir is required",
		},
		{
			name:    "local with bad priority",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: BackendLocal, ModelsDir: "/models", Model: "owner/t5-qg-onnx", BackendPriority: []string{"tpu"}},
			wantErr: "invalid backend priority",
		},
		{
			name:   "hf inference",
			config: Config{ApiUrl: "http://localhost:8000", Backend: BackendHFInference, Inference: InferenceConfig{Timeout: "45s"}},
		},
		{
			name:    "hf inference bad timeout",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: BackendHFInference, Inference: InferenceConfig{Timeout: "forever"}},
			wantErr: "invalid inference.timeout",
		},
		{
			name:   "openai with key",
			config: Config{ApiUrl: "http://localhost:8000", Backend: BackendOpenAI, OpenAI: OpenAIConfig{APIKey: "sk-test"}},
		},
		{
			name:   "openai with base url only",
			config: Config{ApiUrl: "http://localhost:8000", Backend: BackendOpenAI, OpenAI: OpenAIConfig{BaseURL: "http://localhost:11434/v1"}},
		},
		{
			name:    "openai without credentials",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: BackendOpenAI},
			wantErr: "openai.api_key or openai.base_url is required",
		},
		{
			name:    "unknown backend",
			config:  Config{ApiUrl: "http://localhost:8000", Backend: "tpu"},
			wantErr: "unknown backend",
		},
		{
			name:    "negative pool size",
			config:  Config{ApiUrl: "http://localhost:8000", PoolSize: -1},
			wantErr: "pool_size must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	t.Run("HostedModelByDefault", func(t *testing.T) {
		c := Config{ApiUrl: "http://localhost:8000"}
		require.NoError(t, c.Validate())
		assert.Equal(t, BackendHFInference, c.Backend)
		assert.Equal(t, DefaultModel, c.Model)
	})

	t.Run("LocalNeverDefaultsToPyTorchRepo", func(t *testing.T) {
		c := Config{ApiUrl: "http://localhost:8000", Backend: BackendLocal, ModelsDir: "/models"}
		require.ErrorIs(t, c.Validate(), ErrLocalModelRequired)
		assert.Empty(t, c.Model)
	})

	t.Run("OpenAIUsesChatModelName", func(t *testing.T) {
		c := Config{ApiUrl: "http://localhost:8000", Backend: BackendOpenAI, OpenAI: OpenAIConfig{APIKey: "sk-test"}}
		require.NoError(t, c.Validate())
		assert.Equal(t, "gpt-4.1-mini", c.Model)

		c = Config{ApiUrl: "http://localhost:8000", Backend: BackendOpenAI, OpenAI: OpenAIConfig{APIKey: "sk-test", Model: "llama3"}}
		require.NoError(t, c.Validate())
		assert.Equal(t, "llama3", c.Model)
	})
}

func TestConfig_InferenceTimeout(t *testing.T) {
	c := Config{}
	d, err := c.InferenceTimeout()
	require.NoError(t, err)
	assert.Zero(t, d)

	c.Inference.Timeout = "1m30s"
	d, err = c.InferenceTimeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)
}

func TestConfig_HugotBackends(t *testing.T) {
	t.Run("CPU", func(t *testing.T) {
		c := Config{BackendPriority: []string{"onnx", "go"}}
		specs, err := c.HugotBackends()
		require.NoError(t, err)
		assert.Equal(t, []hugot.BackendSpec{
			{Backend: hugot.BackendONNX, Device: hugot.DeviceAuto},
			{Backend: hugot.BackendGo, Device: hugot.DeviceAuto},
		}, specs)
	})

	t.Run("GPUPromotesAutoONNX", func(t *testing.T) {
		c := Config{Gpu: true, BackendPriority: []string{"onnx", "go"}}
		specs, err := c.HugotBackends()
		require.NoError(t, err)
		assert.Equal(t, hugot.DeviceCUDA, specs[0].Device)
		assert.Equal(t, hugot.DeviceAuto, specs[1].Device)
	})

	t.Run("GPUKeepsExplicitDevice", func(t *testing.T) {
		c := Config{Gpu: true, BackendPriority: []string{"onnx:cpu"}}
		specs, err := c.HugotBackends()
		require.NoError(t, err)
		assert.Equal(t, hugot.DeviceCPU, specs[0].Device)
	})
}
