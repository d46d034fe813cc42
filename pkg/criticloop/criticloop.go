// Package criticloop runs the per-question state machine: BUILD a DAG,
// VALIDATE it with the critic, loop back to BUILD on rejection until MAX
// rounds are exhausted, then EXECUTE an approved DAG or GIVE_UP.
package criticloop

import (
	"context"
	"time"

	"dagbench/pkg/builder"
	"dagbench/pkg/critic"
	"dagbench/pkg/dag"
	"dagbench/pkg/dagexec"
	"dagbench/pkg/dataset"
	"dagbench/pkg/question"
)

// Message is one role-tagged entry in a question's conversation log.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Trace is the full audit record for one question's run through the loop.
type Trace struct {
	Question        question.Question   `json:"question"`
	DAGHistory      []*dag.Graph         `json:"dag_history"`
	FeedbackHistory []*critic.Feedback   `json:"feedback_history"`
	ExecutionResult *dagexec.Result      `json:"execution_result,omitempty"`
	IterationCount  int                  `json:"iteration_count"`
	IsApproved      bool                 `json:"is_approved"`
	GaveUp          bool                 `json:"gave_up"`
	Messages        []Message            `json:"messages"`
}

// state names the loop's current position, mirrored 1:1 from the
// BUILD/VALIDATE/EXECUTE/GIVE_UP/DONE machine.
type state int

const (
	stateBuild state = iota
	stateValidate
	stateExecute
	stateGiveUp
	stateDone
)

// Loop runs one question through BUILD/VALIDATE/EXECUTE/GIVE_UP.
type Loop struct {
	Builder *builder.Builder
	Critic  *critic.Critic
	Max     int

	// SandboxTimeout bounds each node's call in the EXECUTE state; zero
	// means sandbox.DefaultNodeTimeout.
	SandboxTimeout time.Duration
}

// NewLoop builds a Loop bound to its collaborators. max is MAX from the
// state table (default 3); max == 0 means every question ends in GIVE_UP
// after its single BUILD+VALIDATE cycle, even when that DAG is approved,
// matching the documented boundary behavior. sandboxTimeout
// is forwarded to dagexec.Execute for the EXECUTE state.
func NewLoop(b *builder.Builder, c *critic.Critic, max int, sandboxTimeout time.Duration) *Loop {
	return &Loop{Builder: b, Critic: c, Max: max, SandboxTimeout: sandboxTimeout}
}

// Run drives q through the state machine to completion and returns the
// full Trace.
func (l *Loop) Run(ctx context.Context, q question.Question, meta *dataset.Metadata, bundle dataset.Bundle) *Trace {
	trace := &Trace{Question: q}

	var (
		currentDAG *dag.Graph
		feedback   *critic.Feedback
		st         = stateBuild
	)

	for st != stateDone {
		select {
		case <-ctx.Done():
			trace.GaveUp = true
			st = stateDone
			continue
		default:
		}

		switch st {
		case stateBuild:
			currentDAG = l.Builder.Build(ctx, q, meta, bundle, currentDAG, feedback)
			trace.DAGHistory = append(trace.DAGHistory, currentDAG)
			trace.IterationCount++
			trace.Messages = append(trace.Messages, Message{
				Role: "builder", Content: currentDAG.Description, Timestamp: time.Now(),
			})
			st = stateValidate

		case stateValidate:
			feedback = l.Critic.Review(ctx, currentDAG, q, meta, bundle)
			trace.FeedbackHistory = append(trace.FeedbackHistory, feedback)
			trace.Messages = append(trace.Messages, Message{
				Role: "critic", Content: feedback.OverallReasoning, Timestamp: time.Now(),
			})

			switch {
			case l.Max <= 0:
				st = stateGiveUp
			case feedback.IsApproved:
				trace.IsApproved = true
				st = stateExecute
			case trace.IterationCount < l.Max:
				st = stateBuild
			default:
				st = stateGiveUp
			}

		case stateExecute:
			result := dagexec.Execute(ctx, currentDAG, bundle, l.SandboxTimeout)
			trace.ExecutionResult = &result
			st = stateDone

		case stateGiveUp:
			trace.GaveUp = true
			trace.ExecutionResult = nil
			st = stateDone
		}
	}

	return trace
}
