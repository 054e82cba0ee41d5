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
	"fmt"
	"runtime"

	"github.com/antflydb/questionate/pkg/questionate/lib/hugot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "questionate %s\n", Version)
		_, _ = fmt.Fprintf(out, "  commit:  %s\n", GitCommit)
		_, _ = fmt.Fprintf(out, "  built:   %s\n", BuildTime)
		_, _ = fmt.Fprintf(out, "  go:      %s\n", runtime.Version())
		_, _ = fmt.Fprintln(out, "  runtimes:")
		for _, b := range hugot.ListRegistered() {
			status := "unavailable"
			if b.Available() {
				status = "available"
			}
			_, _ = fmt.Fprintf(out, "    %-6s %s (%s)\n", b.Type(), b.Name(), status)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
