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

// Package cli provides shared CLI functions for questionate model management.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/antflydb/questionate/pkg/questionate/lib/modelregistry"
	"github.com/antflydb/questionate/pkg/questionate/lib/seq2seq"
)

// Puller downloads a model into a models directory.
type Puller interface {
	Pull(ctx context.Context, ref modelregistry.ModelRef, destDir string) (string, error)
}

// HuggingFaceOptions contains options for pulling from HuggingFace
type HuggingFaceOptions struct {
	ModelsDir string
	HFToken   string
	// Variant overrides the auto-detected ONNX subdirectory for every ref.
	Variant string
}

// NewHuggingFacePuller builds the default Puller, falling back to HF_TOKEN.
func NewHuggingFacePuller(opts HuggingFaceOptions) *modelregistry.HuggingFaceClient {
	hfToken := opts.HFToken
	if hfToken == "" {
		hfToken = os.Getenv("HF_TOKEN")
	}
	return modelregistry.NewHuggingFaceClient(
		modelregistry.WithHFToken(hfToken),
		modelregistry.WithHFProgressHandler(PrintProgress),
	)
}

// PullModels pulls every reference in refs, stopping at the first failure.
func PullModels(ctx context.Context, w io.Writer, puller Puller, refs []string, opts HuggingFaceOptions) error {
	for _, raw := range refs {
		ref, err := modelregistry.ParseModelRef(raw)
		if err != nil {
			return err
		}
		if opts.Variant != "" {
			ref.Variant = opts.Variant
		}
		if ref.Owner == "" {
			return fmt.Errorf("model reference %q needs an owner (e.g., valhalla/t5-small-qg-prepend)", raw)
		}

		_, _ = fmt.Fprintf(w, "\n=== Pulling %s ===\n", ref.FullName())
		modelDir, err := puller.Pull(ctx, ref, opts.ModelsDir)
		if err != nil {
			return fmt.Errorf("failed to pull %s: %w", raw, err)
		}
		_, _ = fmt.Fprintf(w, "\n✓ Model pulled successfully to %s\n", modelDir)
	}
	return nil
}

// ListLocalModels lists locally installed question generation models
func ListLocalModels(w io.Writer, modelsDir string) error {
	_, _ = fmt.Fprintf(w, "Local models in %s:\n\n", modelsDir)

	models, err := modelregistry.DiscoverLocalModels(modelsDir, seq2seq.IsSeq2SeqModel)
	if err != nil {
		return err
	}

	if len(models) == 0 {
		_, _ = fmt.Fprintln(w, "No models found locally.")
		_, _ = fmt.Fprintln(w, "\nUse 'questionate pull <owner/name>' to download models.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTASK\tSIZE\tSOURCE")
	for _, m := range models {
		source := "local"
		if m.Manifest != nil && m.Manifest.Provenance != nil {
			source = m.Manifest.Provenance.DownloadedFrom
		}
		task := "seq2seq"
		if seq2seq.IsQuestionGenerationModel(m.Path) {
			task = "question-generation"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, task, FormatBytes(m.Size), source)
	}
	return tw.Flush()
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// PrintProgress prints download progress to stdout
func PrintProgress(downloaded, total int64, filename string) {
	if total <= 0 {
		fmt.Printf("\r  %s: %s", filename, FormatBytes(downloaded))
		return
	}

	percent := float64(downloaded) / float64(total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * float64(downloaded) / float64(total))

	bar := strings.Repeat("=", filled) + strings.Repeat("-", barWidth-filled)
	fmt.Printf("\r  %s: [%s] %.1f%% (%s)", filename, bar, percent, FormatBytes(total))

	if downloaded >= total {
		fmt.Println()
	}
}
