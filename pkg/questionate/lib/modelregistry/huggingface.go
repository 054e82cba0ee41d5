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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/go-huggingface/hub"
	"go.uber.org/zap"
)

// ErrNoONNXExport is returned by Pull when a repository has no seq2seq ONNX files.
var ErrNoONNXExport = errors.New("no encoder/decoder ONNX files found")

// ProgressHandler is called to report download progress
type ProgressHandler func(downloaded, total int64, filename string)

// HuggingFaceClient pulls seq2seq ONNX models from HuggingFace Hub
type HuggingFaceClient struct {
	token           string
	progressHandler ProgressHandler
	logger          *zap.Logger

	// listFiles and downloadFile default to the hub; tests replace them.
	listFiles    func(ctx context.Context, repoID string) ([]string, error)
	downloadFile func(ctx context.Context, repoID, fileName string) (string, error)
}

// HFClientOption configures the HuggingFace client
type HFClientOption func(*HuggingFaceClient)

// WithHFToken sets the HuggingFace API token for gated models
func WithHFToken(token string) HFClientOption {
	return func(c *HuggingFaceClient) { c.token = token }
}

// WithHFProgressHandler sets the progress handler for downloads
func WithHFProgressHandler(h ProgressHandler) HFClientOption {
	return func(c *HuggingFaceClient) { c.progressHandler = h }
}

// WithHFLogger sets the logger
func WithHFLogger(logger *zap.Logger) HFClientOption {
	return func(c *HuggingFaceClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHuggingFaceClient creates a new HuggingFace client
func NewHuggingFaceClient(opts ...HFClientOption) *HuggingFaceClient {
	c := &HuggingFaceClient{logger: zap.NewNop()}
	c.listFiles = c.hubListFiles
	c.downloadFile = c.hubDownloadFile
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HuggingFaceClient) repo(repoID string) *hub.Repo {
	repo := hub.New(repoID)
	if c.token != "" {
		repo = repo.WithAuth(c.token)
	}
	return repo
}

func (c *HuggingFaceClient) hubListFiles(ctx context.Context, repoID string) ([]string, error) {
	var files []string
	for fileName, err := range c.repo(repoID).IterFileNames() {
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		files = append(files, fileName)
	}
	return files, nil
}

func (c *HuggingFaceClient) hubDownloadFile(ctx context.Context, repoID, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.repo(repoID).DownloadFile(fileName)
}

// Pull downloads the ONNX export and tokenizer of ref into
// destDir/owner/name, flattening any variant subdirectory, and writes a
// model_manifest.json next to the files. It returns the model directory.
func (c *HuggingFaceClient) Pull(ctx context.Context, ref ModelRef, destDir string) (string, error) {
	repoID := ref.FullName()
	files, err := c.listFiles(ctx, repoID)
	if err != nil {
		return "", err
	}

	variant := ref.Variant
	if variant == "" {
		variant = DetectVariant(files)
		if variant != "" {
			c.logger.Info("Auto-selected ONNX subdirectory", zap.String("repo", repoID), zap.String("variant", variant))
		}
	}

	toDownload := SelectSeq2SeqFiles(files, variant)
	if !hasEncoderDecoder(toDownload) {
		return "", fmt.Errorf("%w in %s (export it with optimum-cli export onnx and pull the export instead)", ErrNoONNXExport, ref)
	}

	modelDir := filepath.Join(destDir, ref.DirPath())
	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	for _, fileName := range toDownload {
		localPath, err := c.downloadFile(ctx, repoID, fileName)
		if err != nil {
			return "", fmt.Errorf("downloading %s: %w", fileName, err)
		}

		destName := path.Base(fileName)
		destPath := filepath.Join(modelDir, destName)

		if c.progressHandler != nil {
			c.progressHandler(0, 0, destName)
		}
		if err := copyFile(localPath, destPath); err != nil {
			return "", fmt.Errorf("copying %s: %w", fileName, err)
		}
		if c.progressHandler != nil {
			if info, err := os.Stat(destPath); err == nil {
				c.progressHandler(info.Size(), info.Size(), destName)
			}
		}
	}

	if err := c.saveManifest(modelDir, ref, variant); err != nil {
		c.logger.Warn("Failed to write model manifest", zap.String("dir", modelDir), zap.Error(err))
	}

	c.logger.Info("Pulled model",
		zap.String("repo", repoID),
		zap.String("dir", modelDir),
		zap.Int("files", len(toDownload)))
	return modelDir, nil
}

func (c *HuggingFaceClient) saveManifest(modelDir string, ref ModelRef, variant string) error {
	files, err := ScanModelFiles(modelDir)
	if err != nil {
		return fmt.Errorf("scanning files: %w", err)
	}
	manifest := &ModelManifest{
		SchemaVersion: CurrentSchemaVersion,
		Name:          ref.Name,
		Source:        ref.FullName(),
		Owner:         ref.Owner,
		Files:         files,
		Provenance: &ModelProvenance{
			DownloadedFrom: "huggingface",
			DownloadedAt:   time.Now(),
			Variant:        variant,
		},
	}
	return manifest.SaveTo(filepath.Join(modelDir, ManifestFilename))
}

// supportFiles are tokenizer and config files kept regardless of variant.
var supportFiles = map[string]bool{
	"config.json":             true,
	"generation_config.json":  true,
	"tokenizer.json":          true,
	"tokenizer_config.json":   true,
	"special_tokens_map.json": true,
	"added_tokens.json":       true,
	"spiece.model":            true,
	"tokenizer.model":         true,
	"seq2seq_config.json":     true,
}

// quantizedMarkers identify alternative precisions in Optimum exports.
var quantizedMarkers = []string{"_quantized", "_fp16", "_int8", "_uint8", "_q4", "_bnb4"}

func isONNXFile(name string) bool {
	return strings.HasSuffix(name, ".onnx") || strings.HasSuffix(name, ".onnx_data") || strings.HasSuffix(name, ".onnx.data")
}

func isQuantized(name string) bool {
	for _, m := range quantizedMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// DetectVariant returns the repo subdirectory holding the encoder ONNX file
// when there is none at the repo root. "" means the root.
func DetectVariant(files []string) string {
	var found string
	for _, f := range files {
		base := path.Base(f)
		if base != "encoder.onnx" && base != "encoder_model.onnx" {
			continue
		}
		dir := path.Dir(f)
		if dir == "." {
			return ""
		}
		if found == "" || dir < found {
			found = dir
		}
	}
	return found
}

// SelectSeq2SeqFiles picks the full-precision ONNX files from the variant
// directory plus tokenizer and config files. Basenames are unique in the
// result; root-level support files win over nested ones.
func SelectSeq2SeqFiles(files []string, variant string) []string {
	var result []string
	seen := make(map[string]bool)

	add := func(f string) {
		base := path.Base(f)
		if seen[base] {
			return
		}
		seen[base] = true
		result = append(result, f)
	}

	for _, f := range files {
		if path.Dir(f) == "." && supportFiles[f] {
			add(f)
		}
	}
	for _, f := range files {
		if supportFiles[path.Base(f)] {
			add(f)
		}
	}

	for _, f := range files {
		dir := path.Dir(f)
		if dir == "." {
			dir = ""
		}
		if dir != variant {
			continue
		}
		base := path.Base(f)
		if isONNXFile(base) && !isQuantized(base) {
			add(f)
		}
	}
	return result
}

func hasEncoderDecoder(files []string) bool {
	var encoder, decoder bool
	for _, f := range files {
		base := path.Base(f)
		switch {
		case base == "encoder.onnx" || base == "encoder_model.onnx":
			encoder = true
		case strings.HasPrefix(base, "decoder") && strings.HasSuffix(base, ".onnx"):
			decoder = true
		}
	}
	return encoder && decoder
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("copying: %w", err)
	}
	return dstFile.Close()
}
