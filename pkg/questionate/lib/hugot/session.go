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

// Package hugot creates Hugot sessions on the best available runtime.
//
// Backends are selected based on build tags and availability:
//   - Pure Go (goMLX): Always available, no CGO required
//   - ONNX Runtime: Fastest inference, requires -tags="onnx,ORT"
//
// Example usage:
//
//	hugot.Configure(specs)
//	session, err := hugot.NewSession()
package hugot

import (
	"errors"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
)

// ErrNoBackend is returned when no registered backend is available.
var ErrNoBackend = errors.New("no inference backend available")

// NewSession creates a new Hugot session using the best available backend.
func NewSession(opts ...options.WithOption) (*hugot.Session, error) {
	backend := GetDefaultBackend()
	if backend == nil {
		return nil, ErrNoBackend
	}
	return backend.CreateSession(opts...)
}

// NewSessionOrUseExisting returns the provided session if non-nil, otherwise creates a new one.
//
// IMPORTANT: With ONNX Runtime backend, only ONE session can be active at a time.
func NewSessionOrUseExisting(existingSession *hugot.Session, opts ...options.WithOption) (*hugot.Session, error) {
	if existingSession != nil {
		return existingSession, nil
	}
	return NewSession(opts...)
}

// BackendName returns a human-readable name of the default backend being used.
func BackendName() string {
	b := GetDefaultBackend()
	if b == nil {
		return "No backend available"
	}
	return b.Name()
}
