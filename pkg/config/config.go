// Package config loads and validates RunConfig, the tunables that govern
// one evaluation run: question count, per-component LLM temperatures,
// sandbox timeout, retry schedule, and fan-out concurrency. Loading follows
// the teacher's own pkg/config shape: read YAML, expand environment
// variables, merge onto built-in defaults with dario.cat/mergo, then run a
// fail-fast Validator.
package config

import "time"

// RunConfig is the full set of tunables for one pipeline invocation.
type RunConfig struct {
	// MaxBuildCriticRounds bounds the critic loop's BUILD/VALIDATE cycles
	// per question before it gives up.
	MaxBuildCriticRounds int `yaml:"max_build_critic_rounds"`

	// NumQuestions is how many ranked questions the question generator
	// is asked to produce.
	NumQuestions int `yaml:"num_questions"`

	// QuestionTemperature, BuilderTemperature, and CriticTemperature are
	// the per-call LLM temperatures for each of the three model-facing
	// components.
	QuestionTemperature float64 `yaml:"question_temperature"`
	BuilderTemperature  float64 `yaml:"builder_temperature"`
	CriticTemperature   float64 `yaml:"critic_temperature"`

	// SandboxTimeout bounds a single node's function call.
	SandboxTimeout time.Duration `yaml:"sandbox_timeout"`

	// LLMRetryBackoff is the wait schedule between retry attempts; its
	// length plus one is the total attempt count for any single LLM call.
	LLMRetryBackoff []time.Duration `yaml:"llm_retry_backoff"`

	// MaxConcurrentQuestions caps how many critic-loop instances run at
	// once within a single run, for LLM rate-limit hygiene.
	MaxConcurrentQuestions int `yaml:"max_concurrent_questions"`

	// Model is the provider model identifier sent with every LLM call.
	Model string `yaml:"model"`

	// LLMBaseURL overrides the provider's API base URL (empty means the
	// public OpenAI endpoint).
	LLMBaseURL string `yaml:"llm_base_url"`

	// RunRegistryGracePeriod is how long a run's event stream survives
	// in the registry after its terminal event, to allow a slow
	// subscriber to finish draining.
	RunRegistryGracePeriod time.Duration `yaml:"run_registry_grace_period"`

	// EventQueueCapacity bounds the number of buffered-but-undelivered
	// events per run before publishers apply backpressure.
	EventQueueCapacity int `yaml:"event_queue_capacity"`

	// ResultsDir is where eval_results_<timestamp>.json reports are written.
	ResultsDir string `yaml:"results_dir"`
}

// Defaults returns the built-in RunConfig, the starting point every loaded
// YAML file is merged onto.
func Defaults() *RunConfig {
	return &RunConfig{
		MaxBuildCriticRounds:    3,
		NumQuestions:            10,
		QuestionTemperature:     0.3,
		BuilderTemperature:      0.2,
		CriticTemperature:       0.0,
		SandboxTimeout:          10 * time.Second,
		LLMRetryBackoff:         []time.Duration{5 * time.Second, 10 * time.Second},
		MaxConcurrentQuestions:  4,
		Model:                   "gpt-4o-mini",
		RunRegistryGracePeriod:  5 * time.Minute,
		EventQueueCapacity:      256,
		ResultsDir:              "results",
	}
}
