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
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/antflydb/antfly-go/libaf/healthserver"
	"github.com/antflydb/antfly-go/libaf/logging"
	"github.com/antflydb/questionate/pkg/questionate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var healthPort int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the questionate server",
	Long:  `Start the questionate server and load the default question generation model.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("api-url", "http://localhost:8001", "API listen URL")
	runCmd.Flags().IntVar(&healthPort, "health-port", 4201, "health/metrics server port")
	runCmd.Flags().Bool("gpu", false, "use CUDA for the ONNX runtime")
	runCmd.Flags().Int("pool-size", 1, "number of local inference pipelines (0 = number of CPUs)")
	runCmd.Flags().Bool("auto-pull", false, "download the default model from HuggingFace when missing")
	mustBindPFlag("api_url", runCmd.Flags().Lookup("api-url"))
	mustBindPFlag("health_port", runCmd.Flags().Lookup("health-port"))
	mustBindPFlag("gpu", runCmd.Flags().Lookup("gpu"))
	mustBindPFlag("pool_size", runCmd.Flags().Lookup("pool-size"))
	mustBindPFlag("auto_pull", runCmd.Flags().Lookup("auto-pull"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.NewLogger(&logging.Config{
		Level: logging.Level(viper.GetString("log.level")),
		Style: logging.Style(viper.GetString("log.style")),
	})
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Running as questionate")

	cfg := loadConfig()

	ready := &atomic.Bool{}
	readyC := make(chan struct{})

	healthserver.Start(logger, viper.GetInt("health_port"), ready.Load)

	go func() {
		<-readyC
		ready.Store(true)
		logger.Info("Questionate is ready")
	}()

	questionate.RunAsQuestionate(ctx, logger, cfg, readyC)
	return nil
}
