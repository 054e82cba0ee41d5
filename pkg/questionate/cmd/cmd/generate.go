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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antflydb/antfly-go/libaf/logging"
	"github.com/antflydb/questionate/pkg/questionate"
	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	khugot "github.com/knights-analytics/hugot"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate [summary]",
	Short: "Generate questions for a passage without starting the server",
	Long: `Load the configured backend once and print one generated question per line.

The summary is taken from the arguments, or read from stdin when none are given.

Examples:
  questionate generate "Water boils at 100C. It freezes at 0C."
  cat notes.txt | questionate generate
  questionate generate --backend hf-inference "Cells divide by mitosis."`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	summary, err := readSummary(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
	defer func() {
		_ = logger.Sync()
	}()

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var session *khugot.Session
	if cfg.Backend == questionate.BackendLocal {
		session, err = questionate.NewHugotSession(cfg)
		if err != nil {
			return fmt.Errorf("creating hugot session: %w", err)
		}
		defer func() { _ = session.Destroy() }()
	}

	registry := questionate.NewGeneratorRegistry(logger.Named("registry"))
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("Error closing generators", zap.Error(err))
		}
	}()

	if err := registry.RegisterBackends(cmd.Context(), cfg, session); err != nil {
		return err
	}
	gen, err := registry.Get(cfg.Model)
	if err != nil {
		return err
	}

	resp, err := questions.NewHandler(gen).Generate(cmd.Context(), summary)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, q := range resp.Questions {
		_, _ = fmt.Fprintln(out, q)
	}
	return nil
}

func readSummary(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("no summary given: pass it as an argument or pipe it on stdin")
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}
