package config

import "fmt"

// Validator validates a RunConfig comprehensively, fail-fast, with clear
// per-field error messages — mirrors the teacher's own config Validator
// shape (one validateX method per concern, called in dependency order).
type Validator struct {
	cfg *RunConfig
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *RunConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validateX check in turn, returning the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateRounds(); err != nil {
		return err
	}
	if err := v.validateQuestionCount(); err != nil {
		return err
	}
	if err := v.validateTemperatures(); err != nil {
		return err
	}
	if err := v.validateSandbox(); err != nil {
		return err
	}
	if err := v.validateBackoff(); err != nil {
		return err
	}
	if err := v.validateConcurrency(); err != nil {
		return err
	}
	if err := v.validateResultsDir(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateRounds() error {
	if v.cfg.MaxBuildCriticRounds < 0 {
		return NewValidationError("max_build_critic_rounds",
			fmt.Errorf("must be non-negative, got %d", v.cfg.MaxBuildCriticRounds))
	}
	return nil
}

func (v *Validator) validateQuestionCount() error {
	if v.cfg.NumQuestions < 1 {
		return NewValidationError("num_questions",
			fmt.Errorf("must be at least 1, got %d", v.cfg.NumQuestions))
	}
	return nil
}

func (v *Validator) validateTemperatures() error {
	for name, t := range map[string]float64{
		"question_temperature": v.cfg.QuestionTemperature,
		"builder_temperature":  v.cfg.BuilderTemperature,
		"critic_temperature":   v.cfg.CriticTemperature,
	} {
		if t < 0 || t > 2 {
			return NewValidationError(name, fmt.Errorf("must be within [0, 2], got %v", t))
		}
	}
	return nil
}

func (v *Validator) validateSandbox() error {
	if v.cfg.SandboxTimeout <= 0 {
		return NewValidationError("sandbox_timeout",
			fmt.Errorf("must be positive, got %v", v.cfg.SandboxTimeout))
	}
	return nil
}

func (v *Validator) validateBackoff() error {
	for i, d := range v.cfg.LLMRetryBackoff {
		if d < 0 {
			return NewValidationError("llm_retry_backoff",
				fmt.Errorf("entry %d must be non-negative, got %v", i, d))
		}
	}
	return nil
}

func (v *Validator) validateConcurrency() error {
	if v.cfg.MaxConcurrentQuestions < 1 {
		return NewValidationError("max_concurrent_questions",
			fmt.Errorf("must be at least 1, got %d", v.cfg.MaxConcurrentQuestions))
	}
	return nil
}

func (v *Validator) validateResultsDir() error {
	if v.cfg.ResultsDir == "" {
		return NewValidationError("results_dir", fmt.Errorf("must not be empty"))
	}
	return nil
}
