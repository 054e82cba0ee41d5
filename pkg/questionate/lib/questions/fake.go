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

import (
	"context"
	"sync"
)

var _ Generator = (*FakeGenerator)(nil)

// FakeGenerator is a deterministic Generator that returns fixed outputs.
// It records every call so tests can assert on prompts and parameters.
type FakeGenerator struct {
	// Outputs is returned from every Generate call.
	Outputs []string
	// Err, when set, is returned instead of Outputs.
	Err error

	mu     sync.Mutex
	calls  []FakeCall
	closed bool
}

// FakeCall is one recorded Generate invocation.
type FakeCall struct {
	Prompt string
	Params GenerationParams
}

// Generate records the call and returns the configured outputs or error.
func (f *FakeGenerator) Generate(ctx context.Context, prompt string, params GenerationParams) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Prompt: prompt, Params: params})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]string, len(f.Outputs))
	copy(out, f.Outputs)
	return out, nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeGenerator) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// Closed reports whether Close has been called.
func (f *FakeGenerator) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close marks the generator closed.
func (f *FakeGenerator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
