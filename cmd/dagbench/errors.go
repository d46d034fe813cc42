package main

import (
	"errors"

	"dagbench/pkg/config"
	"dagbench/pkg/llm"
	"dagbench/pkg/orchestrator"
)

func isValidationError(err error) bool {
	return errors.Is(err, config.ErrValidationFailed) ||
		errors.Is(err, orchestrator.ErrEmptyDataset)
}

func isTransportError(err error) bool {
	return errors.Is(err, llm.ErrTransport)
}
