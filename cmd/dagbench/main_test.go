package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"dagbench/pkg/config"
	"dagbench/pkg/llm"
	"dagbench/pkg/orchestrator"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"validation failed", fmt.Errorf("wrap: %w", config.ErrValidationFailed), exitValidationError},
		{"empty dataset", orchestrator.ErrEmptyDataset, exitValidationError},
		{"transport error", fmt.Errorf("wrap: %w", llm.ErrTransport), exitLLMUnreachable},
		{"unknown error", errors.New("boom"), exitInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCodeFor(tc.err))
		})
	}
}
