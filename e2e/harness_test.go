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

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/antflydb/questionate/pkg/questionate/lib/modelregistry"
)

// testModelsDir is the shared models directory for all e2e tests
var testModelsDir string

// modelDownloadMutex ensures only one model downloads at a time
var modelDownloadMutex sync.Mutex

// TestMain sets up the e2e test environment (models directory only - downloads are lazy)
func TestMain(m *testing.M) {
	testModelsDir = os.Getenv("QUESTIONATE_MODELS_DIR")
	cleanup := false
	if testModelsDir == "" {
		var err error
		testModelsDir, err = os.MkdirTemp("", "questionate-e2e-models-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create temp models dir: %v\n", err)
			os.Exit(1)
		}
		cleanup = os.Getenv("KEEP_TEST_MODELS") != "true"
	}

	fmt.Printf("E2E Test Setup: Using models directory: %s\n", testModelsDir)

	code := m.Run()
	if cleanup {
		_ = os.RemoveAll(testModelsDir)
	}
	os.Exit(code)
}

// ensureHuggingFaceModel downloads repo (owner/name) into the shared models
// directory if not present and returns the model path.
func ensureHuggingFaceModel(t *testing.T, repo string) string {
	t.Helper()

	modelDownloadMutex.Lock()
	defer modelDownloadMutex.Unlock()

	ref, err := modelregistry.ParseModelRef(repo)
	if err != nil {
		t.Fatalf("Invalid model reference %s: %v", repo, err)
	}

	modelPath := filepath.Join(testModelsDir, ref.DirPath())
	if _, err := os.Stat(modelPath); err == nil {
		t.Logf("HuggingFace model %s already exists at %s", repo, modelPath)
		return modelPath
	}

	t.Logf("Downloading model from HuggingFace: %s", repo)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Track download progress per file (only log at milestones)
	lastMilestone := make(map[string]int)
	hfClient := modelregistry.NewHuggingFaceClient(
		modelregistry.WithHFToken(os.Getenv("HF_TOKEN")),
		modelregistry.WithHFProgressHandler(func(downloaded, total int64, filename string) {
			if total > 0 {
				percent := float64(downloaded) / float64(total) * 100
				milestone := int(percent / 25)
				if milestone > lastMilestone[filename] || (downloaded == total && lastMilestone[filename] < 4) {
					lastMilestone[filename] = milestone
					t.Logf("  %s: %.0f%%", filename, percent)
				}
			}
		}),
	)

	modelPath, err = hfClient.Pull(ctx, ref, testModelsDir)
	if err != nil {
		t.Fatalf("Failed to pull HuggingFace model %s: %v", repo, err)
	}

	t.Logf("Successfully downloaded HuggingFace model: %s", repo)
	return modelPath
}

// findAvailablePort finds an available TCP port
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to find available port: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
