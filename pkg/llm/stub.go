package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedResponse is one canned reply a StubClient hands back, in order.
// Err takes priority over Content when set, letting tests exercise the
// transport-error and parse-error retry paths deterministically without a
// real network call.
type ScriptedResponse struct {
	Content string
	Err     error
}

// StubClient is a Client that replays a fixed script, grounded on the
// teacher's own stub executor and mock LLM test helper: each call pops the
// next scripted response and records the request it was given so test
// assertions can check what was actually sent (prompts, temperature).
type StubClient struct {
	mu       sync.Mutex
	script   []ScriptedResponse
	calls    []Request
	nextIdx  int
}

// NewStubClient builds a StubClient that replays responses in order.
func NewStubClient(responses ...ScriptedResponse) *StubClient {
	return &StubClient{script: responses}
}

// Complete returns the next scripted response. Calling it past the end of
// the script is a test-authoring bug and panics rather than silently
// looping, so a missing script entry fails loudly.
func (s *StubClient) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if s.nextIdx >= len(s.script) {
		panic(fmt.Sprintf("llm.StubClient: no scripted response left for call %d", s.nextIdx+1))
	}
	next := s.script[s.nextIdx]
	s.nextIdx++

	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content}, nil
}

// Calls returns every request the stub received, in order.
func (s *StubClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}
