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

// Package cmd holds the questionate cobra commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antflydb/questionate/pkg/questionate"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Build information, set from main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	cfgFile   string
	modelsDir string
)

var rootCmd = &cobra.Command{
	Use:   "questionate",
	Short: "Generate quiz questions from short passages of text",
	Long: `Questionate turns a short passage into a list of quiz-style questions
using a T5 question generation model, served locally through Hugot or
through a hosted inference API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		questionate.Version = Version
		questionate.GitCommit = GitCommit
		questionate.BuildTime = BuildTime
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./questionate.yaml or ~/.questionate/questionate.yaml)")
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models-dir", defaultModelsDir(), "directory holding local models")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-style", "terminal", "log style (terminal, json, noop)")
	rootCmd.PersistentFlags().String("backend", string(questionate.DefaultBackend), "generation backend (local, hf-inference, openai)")
	rootCmd.PersistentFlags().String("model", "", "default model name (required for the local backend)")

	mustBindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log.style", rootCmd.PersistentFlags().Lookup("log-style"))
	mustBindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	mustBindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))

	viper.SetDefault("api_url", "http://localhost:8001")
	viper.SetDefault("backend_priority", []string{"onnx", "go"})
	viper.SetDefault("pool_size", 1)
	viper.SetDefault("inference.timeout", "30s")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("questionate")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".questionate"))
		}
	}

	viper.SetEnvPrefix("QUESTIONATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	modelsDir = viper.GetString("models_dir")
}

func defaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".questionate", "models")
	}
	return filepath.Join(home, ".questionate", "models")
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q to %q: %v", flag.Name, key, err))
	}
}

// loadConfig assembles the server configuration from viper.
func loadConfig() questionate.Config {
	hfToken := viper.GetString("inference.token")
	if hfToken == "" {
		hfToken = os.Getenv("HF_TOKEN")
	}
	openAIKey := viper.GetString("openai.api_key")
	if openAIKey == "" {
		openAIKey = os.Getenv("OPENAI_API_KEY")
	}
	return questionate.Config{
		ApiUrl:          viper.GetString("api_url"),
		ModelsDir:       modelsDir,
		Model:           viper.GetString("model"),
		Backend:         questionate.Backend(viper.GetString("backend")),
		BackendPriority: viper.GetStringSlice("backend_priority"),
		Gpu:             viper.GetBool("gpu"),
		PoolSize:        viper.GetInt("pool_size"),
		AutoPull:        viper.GetBool("auto_pull"),
		Inference: questionate.InferenceConfig{
			Endpoint: viper.GetString("inference.endpoint"),
			Token:    hfToken,
			Timeout:  viper.GetString("inference.timeout"),
		},
		OpenAI: questionate.OpenAIConfig{
			BaseURL: viper.GetString("openai.base_url"),
			APIKey:  openAIKey,
			Model:   viper.GetString("openai.model"),
		},
	}
}
