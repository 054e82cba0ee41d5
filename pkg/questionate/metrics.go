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
	"context"

	"github.com/antflydb/questionate/pkg/questionate/lib/questions"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "questionate",
			Name:      "question_request_ops_total",
			Help:      "The total number of question generation requests by HTTP status.",
		},
		[]string{"status"},
	)
	questionsReturned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "questionate",
			Name:      "questions_returned_total",
			Help:      "The total number of questions returned to callers.",
		},
		[]string{"model"},
	)
	candidatesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "antfly",
			Subsystem: "questionate",
			Name:      "candidates_generated_total",
			Help:      "The total number of raw candidates produced by generators, before filtering.",
		},
		[]string{"model"},
	)

	modelLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "questionate",
			Name:      "model_load_duration_seconds",
			Help:      "Time taken to load a generator.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "kind"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "antfly",
			Subsystem: "questionate",
			Name:      "request_duration_seconds",
			Help:      "Time taken to serve a question generation request.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"endpoint", "model", "status"},
	)
)

func init() {
	prometheus.MustRegister(questionRequestOps)
	prometheus.MustRegister(questionsReturned)
	prometheus.MustRegister(candidatesGenerated)
	prometheus.MustRegister(modelLoadDuration)
	prometheus.MustRegister(requestDuration)
}

// RecordModelLoadDuration records how long it took to load a generator
func RecordModelLoadDuration(model, kind string, seconds float64) {
	modelLoadDuration.WithLabelValues(model, kind).Observe(seconds)
}

// RecordRequestDuration records how long a request took
func RecordRequestDuration(endpoint, model, status string, seconds float64) {
	requestDuration.WithLabelValues(endpoint, model, status).Observe(seconds)
}

// RecordQuestionRequest counts a request by its HTTP status
func RecordQuestionRequest(status string) {
	questionRequestOps.WithLabelValues(status).Inc()
}

// RecordQuestionsReturned counts questions sent back to a caller
func RecordQuestionsReturned(model string, count int) {
	questionsReturned.WithLabelValues(model).Add(float64(count))
}

// RecordCandidatesGenerated counts raw generator outputs
func RecordCandidatesGenerated(model string, count int) {
	candidatesGenerated.WithLabelValues(model).Add(float64(count))
}

// instrumentedGenerator counts the candidates a generator returns.
type instrumentedGenerator struct {
	questions.Generator
	model string
}

func (g instrumentedGenerator) Generate(ctx context.Context, prompt string, params questions.GenerationParams) ([]string, error) {
	out, err := g.Generator.Generate(ctx, prompt, params)
	if err == nil {
		RecordCandidatesGenerated(g.model, len(out))
	}
	return out, err
}
