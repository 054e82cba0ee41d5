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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LocalModel is a model directory found under the models directory
type LocalModel struct {
	// Name is "owner/name", or just "name" for models without an owner directory
	Name string
	Path string
	// Size is the total size of the regular files in Path
	Size int64
	// Manifest is nil when the directory has no valid model_manifest.json
	Manifest *ModelManifest
}

// DiscoverLocalModels finds model directories laid out as modelsDir/owner/name
// (or modelsDir/name) for which accept returns true. A missing modelsDir
// yields no models and no error. Results are sorted by name.
func DiscoverLocalModels(modelsDir string, accept func(modelPath string) bool) ([]LocalModel, error) {
	entries, err := os.ReadDir(modelsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading models directory: %w", err)
	}

	var models []LocalModel
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		topPath := filepath.Join(modelsDir, entry.Name())
		if accept(topPath) {
			models = append(models, newLocalModel(entry.Name(), topPath))
			continue
		}

		children, err := os.ReadDir(topPath)
		if err != nil {
			continue
		}
		for _, child := range children {
			if !child.IsDir() {
				continue
			}
			modelPath := filepath.Join(topPath, child.Name())
			if accept(modelPath) {
				models = append(models, newLocalModel(entry.Name()+"/"+child.Name(), modelPath))
			}
		}
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func newLocalModel(name, modelPath string) LocalModel {
	m := LocalModel{Name: name, Path: modelPath}
	if files, err := os.ReadDir(modelPath); err == nil {
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if info, err := f.Info(); err == nil {
				m.Size += info.Size()
			}
		}
	}
	if manifest, err := LoadManifestFromDir(modelPath); err == nil {
		m.Manifest = manifest
	}
	return m
}
