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

// Package modelregistry pulls question generation models from the
// HuggingFace Hub into a local models directory.
package modelregistry

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ManifestFilename is the standard filename for model manifests
const ManifestFilename = "model_manifest.json"

// CurrentSchemaVersion is the current manifest schema version
const CurrentSchemaVersion = 1

// ModelFile represents a single file in the model manifest
type ModelFile struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

// ModelProvenance tracks model origin and download metadata
type ModelProvenance struct {
	// DownloadedFrom is the source: "huggingface" or "local"
	DownloadedFrom string    `json:"downloadedFrom"`
	DownloadedAt   time.Time `json:"downloadedAt"`
	// Variant is the repo subdirectory the ONNX files came from, if any
	Variant string `json:"variant,omitempty"`
}

// ModelManifest describes a pulled model and its files
type ModelManifest struct {
	SchemaVersion int    `json:"schemaVersion"`
	Name          string `json:"name"`
	// Source is the full owner/model identifier on HuggingFace
	Source     string           `json:"source,omitempty"`
	Owner      string           `json:"owner,omitempty"`
	Files      []ModelFile      `json:"files"`
	Provenance *ModelProvenance `json:"provenance,omitempty"`
}

// FullName returns "owner/name"
func (m *ModelManifest) FullName() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "/" + m.Name
}

// Validate checks required fields
func (m *ModelManifest) Validate() error {
	if m.SchemaVersion < 1 || m.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %d (expected 1-%d)", m.SchemaVersion, CurrentSchemaVersion)
	}
	if m.Name == "" {
		return fmt.Errorf("manifest missing required field: name")
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest must have at least one file")
	}
	for _, f := range m.Files {
		if f.Name == "" {
			return fmt.Errorf("file entry missing name")
		}
	}
	return nil
}

// SaveTo writes the manifest to a file as JSON
func (m *ModelManifest) SaveTo(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// LoadManifestFromDir loads and validates the manifest in a model directory
func LoadManifestFromDir(modelDir string) (*ModelManifest, error) {
	data, err := os.ReadFile(filepath.Join(modelDir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var manifest ModelManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// ComputeFileDigest computes the SHA256 digest of a file in "sha256:..." format
func ComputeFileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// ScanModelFiles returns ModelFile entries for the regular files in modelDir,
// excluding the manifest itself.
func ScanModelFiles(modelDir string) ([]ModelFile, error) {
	entries, err := os.ReadDir(modelDir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []ModelFile
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == ManifestFilename {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		digest, err := ComputeFileDigest(filepath.Join(modelDir, entry.Name()))
		if err != nil {
			continue
		}
		files = append(files, ModelFile{
			Name:   entry.Name(),
			Digest: digest,
			Size:   info.Size(),
		})
	}
	return files, nil
}
