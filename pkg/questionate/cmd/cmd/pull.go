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

package cmd

import (
	"os"

	"github.com/antflydb/questionate/pkg/questionate/lib/cli"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull <owner/name> [owner/name...]",
	Short: "Pull question generation model(s) from HuggingFace",
	Long: `Download one or more seq2seq ONNX models from the HuggingFace Hub.

Models are stored under <models-dir>/<owner>/<name>/ together with a
model_manifest.json recording file digests and provenance.

Examples:
  # Pull the default model
  questionate pull valhalla/t5-small-qg-prepend

  # Pull a specific ONNX subdirectory
  questionate pull --variant onnx valhalla/t5-small-qg-prepend

  # Pull a gated model
  questionate pull --hf-token hf_xxx owner/private-qg-model

  # Pull to a custom directory
  questionate pull --models-dir /opt/questionate/models valhalla/t5-small-qg-prepend`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPull,
}

func init() {
	rootCmd.AddCommand(pullCmd)

	pullCmd.Flags().String("hf-token", "",
		"HuggingFace API token for gated models (or use HF_TOKEN env var)")
	pullCmd.Flags().String("variant", "",
		"ONNX subdirectory to download (auto-detected when empty)")
}

func runPull(cmd *cobra.Command, args []string) error {
	hfToken, _ := cmd.Flags().GetString("hf-token")
	variant, _ := cmd.Flags().GetString("variant")

	opts := cli.HuggingFaceOptions{
		ModelsDir: modelsDir,
		HFToken:   hfToken,
		Variant:   variant,
	}
	return cli.PullModels(cmd.Context(), os.Stdout, cli.NewHuggingFacePuller(opts), args, opts)
}
