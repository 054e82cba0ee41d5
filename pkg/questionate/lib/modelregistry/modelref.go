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

package modelregistry

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ModelRef represents a parsed model reference
type ModelRef struct {
	// Owner is the namespace/organization (e.g., "valhalla")
	Owner string
	// Name is the model name (e.g., "t5-small-qg-prepend")
	Name string
	// Variant is an optional repo subdirectory holding the ONNX export (e.g., "onnx")
	Variant string
	// IsHuggingFace indicates if this was a hf: prefixed reference
	IsHuggingFace bool
}

// FullName returns "owner/name" format (e.g., "valhalla/t5-small-qg-prepend")
func (r ModelRef) FullName() string {
	if r.Owner == "" {
		return r.Name
	}
	return r.Owner + "/" + r.Name
}

// DirPath returns the directory path relative to the models directory
func (r ModelRef) DirPath() string {
	if r.Owner == "" {
		return r.Name
	}
	return filepath.Join(r.Owner, r.Name)
}

// String returns a human-readable representation
func (r ModelRef) String() string {
	s := r.FullName()
	if r.Variant != "" {
		s += ":" + r.Variant
	}
	if r.IsHuggingFace {
		s = "hf:" + s
	}
	return s
}

// ParseModelRef parses model references:
//
//	"valhalla/t5-small-qg-prepend"       -> Owner: valhalla, Name: t5-small-qg-prepend
//	"valhalla/t5-small-qg-prepend:onnx"  -> same, Variant: onnx
//	"hf:valhalla/t5-small-qg-prepend"    -> same, IsHuggingFace: true
//	"t5-small-qg-prepend"                -> Owner: "", Name: t5-small-qg-prepend
func ParseModelRef(ref string) (ModelRef, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ModelRef{}, fmt.Errorf("empty model reference")
	}

	result := ModelRef{}

	if after, ok := strings.CutPrefix(ref, "hf:"); ok {
		result.IsHuggingFace = true
		ref = after
	}

	if idx := strings.LastIndex(ref, ":"); idx != -1 {
		result.Variant = strings.Trim(ref[idx+1:], "/")
		ref = ref[:idx]
	}

	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 2 {
		result.Owner = parts[0]
		result.Name = parts[1]
	} else {
		result.Name = parts[0]
	}

	if result.Name == "" {
		return ModelRef{}, fmt.Errorf("model reference has empty name: %q", ref)
	}
	if strings.Contains(result.Name, "/") || strings.Contains(result.Owner, "..") || strings.Contains(result.Name, "..") {
		return ModelRef{}, fmt.Errorf("invalid model reference: %q", ref)
	}

	return result, nil
}
