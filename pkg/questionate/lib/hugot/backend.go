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

package hugot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// BackendType identifies the inference backend
type BackendType string

const (
	// BackendGo is the pure Go backend (goMLX) - always available, no CGO required
	BackendGo BackendType = "go"

	// BackendONNX is the ONNX Runtime backend - fast CPU/GPU inference
	BackendONNX BackendType = "onnx"
)

// DeviceType identifies the hardware device for inference
type DeviceType string

const (
	// DeviceAuto lets the backend decide (CPU unless a GPU is explicitly requested)
	DeviceAuto DeviceType = "auto"

	// DeviceCUDA uses NVIDIA CUDA GPU
	DeviceCUDA DeviceType = "cuda"

	// DeviceCPU forces CPU-only inference
	DeviceCPU DeviceType = "cpu"
)

// Backend represents an inference backend that can create Hugot sessions.
// Backends self-register via init() functions in their respective files.
type Backend interface {
	// Type returns the backend type identifier
	Type() BackendType

	// Name returns a human-readable name (e.g., "ONNX Runtime (CUDA)")
	Name() string

	// Available returns true if this backend can be used in the current environment.
	Available() bool

	// Priority returns the default priority (lower = higher priority).
	Priority() int

	// CreateSession creates a new Hugot session with the given options.
	CreateSession(opts ...options.WithOption) (*hugot.Session, error)
}

// deviceSetter is implemented by backends that can target a specific device.
type deviceSetter interface {
	SetDevice(DeviceType)
}

var (
	registry   = make(map[BackendType]Backend)
	registryMu sync.RWMutex

	// Default: ONNX > Go
	defaultPriority = []BackendType{BackendONNX, BackendGo}
	configPriority  []BackendType
	priorityMu      sync.RWMutex
)

// RegisterBackend registers a backend. Called by backend implementations in init().
// Later registrations for the same type overwrite earlier ones.
func RegisterBackend(b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b.Type()] = b
}

// GetBackend returns the backend for the given type, if registered.
func GetBackend(t BackendType) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[t]
	return b, ok
}

// ListRegistered returns all registered backends sorted by default priority.
func ListRegistered() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	backends := make([]Backend, 0, len(registry))
	for _, b := range registry {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool {
		return backends[i].Priority() < backends[j].Priority()
	})
	return backends
}

// SetPriority sets the backend selection priority order.
// Call before creating any sessions to take effect.
func SetPriority(order []BackendType) {
	priorityMu.Lock()
	defer priorityMu.Unlock()
	configPriority = make([]BackendType, len(order))
	copy(configPriority, order)
}

// GetPriority returns the configured priority if set, otherwise the default.
func GetPriority() []BackendType {
	priorityMu.RLock()
	defer priorityMu.RUnlock()
	src := defaultPriority
	if len(configPriority) > 0 {
		src = configPriority
	}
	result := make([]BackendType, len(src))
	copy(result, src)
	return result
}

// GetDefaultBackend returns the first available backend according to priority order.
// Returns nil if no backends are available.
func GetDefaultBackend() Backend {
	priority := GetPriority()

	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, t := range priority {
		if b, ok := registry[t]; ok && b.Available() {
			return b
		}
	}

	// Fallback: any available backend
	for _, b := range registry {
		if b.Available() {
			return b
		}
	}
	return nil
}

// ParseBackendType parses a string into BackendType.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(s) {
	case "onnx":
		return BackendONNX, nil
	case "go", "pure-go", "gomlx":
		return BackendGo, nil
	default:
		return "", fmt.Errorf("unknown backend type: %q (valid: onnx, go)", s)
	}
}

// ParseDeviceType parses a string into DeviceType.
func ParseDeviceType(s string) (DeviceType, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return DeviceAuto, nil
	case "cuda", "gpu":
		return DeviceCUDA, nil
	case "cpu", "off":
		return DeviceCPU, nil
	default:
		return "", fmt.Errorf("unknown device type: %q (valid: auto, cuda, cpu)", s)
	}
}

// BackendSpec combines a backend type with a device specification.
type BackendSpec struct {
	Backend BackendType
	Device  DeviceType
}

// String returns the string representation (e.g., "onnx:cuda" or "go")
func (s BackendSpec) String() string {
	if s.Device == DeviceAuto || s.Device == "" {
		return string(s.Backend)
	}
	return string(s.Backend) + ":" + string(s.Device)
}

// ParseBackendSpec parses a "backend" or "backend:device" string.
func ParseBackendSpec(s string) (BackendSpec, error) {
	parts := strings.SplitN(s, ":", 2)

	backend, err := ParseBackendType(parts[0])
	if err != nil {
		return BackendSpec{}, err
	}

	spec := BackendSpec{Backend: backend, Device: DeviceAuto}
	if len(parts) == 2 {
		device, err := ParseDeviceType(parts[1])
		if err != nil {
			return BackendSpec{}, err
		}
		spec.Device = device
	}
	return spec, nil
}

// ParseBackendPriority parses a list of backend:device strings into BackendSpecs.
func ParseBackendPriority(priority []string) ([]BackendSpec, error) {
	specs := make([]BackendSpec, 0, len(priority))
	for _, s := range priority {
		spec, err := ParseBackendSpec(s)
		if err != nil {
			return nil, fmt.Errorf("invalid backend priority %q: %w", s, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Configure applies a parsed priority list: it sets the selection order and
// forwards each device preference to the matching backend.
func Configure(specs []BackendSpec) {
	if len(specs) == 0 {
		return
	}
	order := make([]BackendType, 0, len(specs))
	for _, spec := range specs {
		order = append(order, spec.Backend)
		if b, ok := GetBackend(spec.Backend); ok {
			if setter, ok := b.(deviceSetter); ok {
				setter.SetDevice(spec.Device)
			}
		}
	}
	SetPriority(order)
}
