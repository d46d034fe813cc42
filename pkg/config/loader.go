package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads configPath (a YAML file, optional), expands environment
// variables, merges it onto Defaults with user values taking precedence,
// and validates the result. An absent file is not an error — Defaults()
// alone is returned, validated.
func Load(_ context.Context, configPath string) (*RunConfig, error) {
	log := slog.With("config_path", configPath)
	cfg := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("run config file not found, using built-in defaults")
			} else {
				return nil, NewLoadError(configPath, err)
			}
		} else {
			data = ExpandEnv(data)
			// Decoding onto a copy of the defaults leaves absent keys at their
			// default and keeps explicit zero values, which the merge below
			// then carries onto cfg.
			override := *Defaults()
			if err := yaml.Unmarshal(data, &override); err != nil {
				return nil, NewLoadError(configPath, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
			}
			if err := mergo.Merge(cfg, &override, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
				return nil, NewLoadError(configPath, fmt.Errorf("merging config: %w", err))
			}
		}
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("run configuration loaded",
		"num_questions", cfg.NumQuestions,
		"max_build_critic_rounds", cfg.MaxBuildCriticRounds,
		"max_concurrent_questions", cfg.MaxConcurrentQuestions)

	return cfg, nil
}

// ResultsFilePath builds the timestamped report path under cfg.ResultsDir,
// matching the persisted-state naming convention `eval_results_<timestamp>.json`.
func ResultsFilePath(cfg *RunConfig, timestamp string) string {
	return filepath.Join(cfg.ResultsDir, fmt.Sprintf("eval_results_%s.json", timestamp))
}
