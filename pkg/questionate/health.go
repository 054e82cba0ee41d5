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

package questionate

import (
	"net/http"
)

// Version information - set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// HealthResponse is the response for /healthz endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for /readyz endpoint
type ReadyResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Loaded bool   `json:"loaded"`
}

// handleHealthz returns 200 if the service is running (liveness check)
func (ln *QuestionateNode) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ln.logger, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReadyz returns 200 once the default generator is loaded (readiness check)
func (ln *QuestionateNode) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status: "ready",
		Model:  ln.config.Model,
		Loaded: ln.Ready(),
	}
	if !resp.Loaded {
		resp.Status = "not_ready"
		writeJSON(w, ln.logger, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, ln.logger, http.StatusOK, resp)
}
