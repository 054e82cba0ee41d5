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

//go:build onnx && ORT

package hugot

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

func init() {
	RegisterBackend(&onnxBackend{})
}

// onnxBackend implements Backend using ONNX Runtime.
//
// Runtime Requirements:
//   - Set LD_LIBRARY_PATH (or ONNXRUNTIME_ROOT) so libonnxruntime can be found
//   - For CUDA: add the CUDA libraries to LD_LIBRARY_PATH and select "onnx:cuda"
type onnxBackend struct {
	mu     sync.RWMutex
	device DeviceType
}

func (b *onnxBackend) Type() BackendType {
	return BackendONNX
}

func (b *onnxBackend) Name() string {
	if b.useCUDA() {
		return "ONNX Runtime (CUDA)"
	}
	return "ONNX Runtime (CPU)"
}

func (b *onnxBackend) Available() bool {
	// The build tags ensure this file is only included when ONNX is available
	return true
}

func (b *onnxBackend) Priority() int {
	return 10
}

// SetDevice selects the device used by sessions created after the call.
func (b *onnxBackend) SetDevice(d DeviceType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device = d
}

func (b *onnxBackend) useCUDA() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.device == DeviceCUDA
}

func (b *onnxBackend) CreateSession(opts ...options.WithOption) (*hugot.Session, error) {
	var baseOpts []options.WithOption

	if libPath := getOnnxLibraryPath(); libPath != "" {
		baseOpts = append(baseOpts, options.WithOnnxLibraryPath(libPath))
	}
	if b.useCUDA() {
		baseOpts = append(baseOpts, options.WithCuda(nil))
	}

	opts = append(baseOpts, opts...)
	return hugot.NewORTSession(opts...)
}

// getOnnxLibraryPath returns the directory containing libonnxruntime.so from environment.
// Checks ONNXRUNTIME_ROOT first, then LD_LIBRARY_PATH.
func getOnnxLibraryPath() string {
	platform := runtime.GOOS + "-" + runtime.GOARCH

	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		for _, dir := range []string{filepath.Join(root, platform, "lib"), filepath.Join(root, "lib")} {
			if _, err := os.Stat(filepath.Join(dir, "libonnxruntime.so")); err == nil {
				return dir
			}
		}
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			if _, err := os.Stat(filepath.Join(dir, "libonnxruntime.so")); err == nil {
				return dir
			}
		}
	}

	return ""
}
