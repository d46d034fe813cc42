// Package e2e drives the full question-generation → build → critique →
// execute → report pipeline through orchestrator.Execute with a scripted
// LLM client, asserting on the resulting RunResult/RunReport and the
// published event sequence. Grounded on the teacher's own test/e2e
// harness in spirit (functional-options TestApp, t.Cleanup teardown) but
// stripped to this system's scope: no database, no MCP, no WebSocket —
// just a dataset bundle, a RunConfig, and a stub LLM.
package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dagbench/pkg/config"
	"dagbench/pkg/dataset"
	"dagbench/pkg/events"
	"dagbench/pkg/llm"
	"dagbench/pkg/orchestrator"
)

// Harness bundles everything one scenario needs to drive a run and
// inspect its outcome.
type Harness struct {
	Bundle   dataset.Bundle
	Metadata *dataset.Metadata
	Config   *config.RunConfig
	Client   llm.Client
}

// Option configures a Harness before it is built.
type Option func(*Harness)

// WithBundle sets the dataset under evaluation.
func WithBundle(b dataset.Bundle) Option {
	return func(h *Harness) { h.Bundle = b }
}

// WithMetadata sets the dataset's schema document.
func WithMetadata(m *dataset.Metadata) Option {
	return func(h *Harness) { h.Metadata = m }
}

// WithLLMClient installs the scripted client every question's builder and
// critic share.
func WithLLMClient(c llm.Client) Option {
	return func(h *Harness) { h.Client = c }
}

// WithMaxRounds overrides the critic loop's MAX for this run.
func WithMaxRounds(n int) Option {
	return func(h *Harness) { h.Config.MaxBuildCriticRounds = n }
}

// WithNumQuestions overrides how many questions the generator is asked for.
func WithNumQuestions(n int) Option {
	return func(h *Harness) { h.Config.NumQuestions = n }
}

// WithMaxConcurrent overrides how many questions fan out in flight at
// once. Scenarios that depend on a scripted LLM client replaying in a
// specific order across questions need this pinned to 1.
func WithMaxConcurrent(n int) Option {
	return func(h *Harness) { h.Config.MaxConcurrentQuestions = n }
}

// NewHarness builds a Harness with sane defaults (one question, three
// rounds, a single-question dataset), then applies opts. There is no
// teardown to register: a Harness owns no goroutines, files, or network
// listeners of its own.
func NewHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.NumQuestions = 1
	cfg.MaxConcurrentQuestions = 2

	h := &Harness{
		Bundle:   dataset.Bundle{"total": float64(42)},
		Metadata: &dataset.Metadata{},
		Config:   cfg,
		Client:   llm.NewStubClient(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Outcome is the full observable result of one scenario run: the
// aggregated RunResult, the rendered RunReport, and every event the run
// published, in publication order.
type Outcome struct {
	Result *orchestrator.RunResult
	Report *orchestrator.RunReport
	Events []events.Event
}

// Run executes the pipeline to completion, draining the run's event
// stream fully before returning. It fails the test immediately on a
// pipeline-level error (empty dataset, question-generation exhaustion);
// per-question failures surface in Outcome.Result instead.
func (h *Harness) Run(t *testing.T, ctx context.Context) *Outcome {
	t.Helper()
	stream := events.NewStream("run-e2e", h.Config.EventQueueCapacity)

	r := &orchestrator.Run{
		ID:                  "run-e2e",
		Bundle:              h.Bundle,
		Metadata:            h.Metadata,
		NumQuestions:        h.Config.NumQuestions,
		MaxRounds:           h.Config.MaxBuildCriticRounds,
		MaxConcurrent:       h.Config.MaxConcurrentQuestions,
		LLMClient:           h.Client,
		Model:               h.Config.Model,
		QuestionTemperature: h.Config.QuestionTemperature,
		BuilderTemperature:  h.Config.BuilderTemperature,
		CriticTemperature:   h.Config.CriticTemperature,
		LLMRetryBackoff:     h.Config.LLMRetryBackoff,
		SandboxTimeout:      h.Config.SandboxTimeout,
		Stream:              stream,
	}

	start := time.Now()
	result, err := orchestrator.Execute(ctx, r)
	require.NoError(t, err)

	var observed []events.Event
	for evt := range stream.Events() {
		observed = append(observed, evt)
	}

	report := orchestrator.BuildReport(result, "e2e-dataset", start)
	return &Outcome{Result: result, Report: report, Events: observed}
}
