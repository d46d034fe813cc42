package llm

import "errors"

// ErrTransport wraps network, timeout, and rate-limit failures talking to
// the LLM provider. Transport errors are always transient: callers retry a
// bounded number of times before falling back to their own policy
// (spec §7 "Transport").
var ErrTransport = errors.New("llm transport error")

// ErrParse wraps a response that does not parse as the expected JSON
// shape. Like ErrTransport, parse errors are retried before the caller's
// fallback kicks in (spec §7 "Parse").
var ErrParse = errors.New("llm response parse error")

// CallError is returned by CallWithRetry and CallJSON once retries are
// exhausted. Attempts records how many calls were actually made so callers
// can surface it in event payloads without re-deriving it from config.
type CallError struct {
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}
