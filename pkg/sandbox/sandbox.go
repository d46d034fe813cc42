package sandbox

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"dagbench/pkg/dag"
)

// DefaultNodeTimeout bounds how long a single node's function call may run
// before Execute gives up and reports a timeout error. The spec leaves this
// as an open question for implementers (§9); 10s/node is the contract this
// sandbox commits to.
const DefaultNodeTimeout = 10 * time.Second

// NodeResult is the outcome of executing one node: its value on success, or
// a structured error on failure. ExecutionTimeMs covers only the function
// call itself, not the safety scan or namespace setup.
type NodeResult struct {
	NodeID           string
	Success          bool
	Output           any
	Error            string
	ExecutionTimeMs  float64
}

// Execute runs node.Code's function against resolvedInputs. It re-runs the
// safety scan (node.Code may have been scanned already by the structural
// validator, but Execute never trusts a caller to have done so), builds a
// fresh yaegi interpreter loaded with only the stdlib, evaluates the
// function, calls it with resolvedInputs matched to the function's declared
// parameter names, and reports the result. The interpreter instance is
// discarded after the call — nothing about one node's execution leaks into
// the next.
//
// timeout bounds the call itself; zero or negative means DefaultNodeTimeout.
// A shorter context deadline still wins, so a run's overall ctx can cut a
// node off earlier than the configured per-node budget.
func Execute(ctx context.Context, node dag.Node, resolvedInputs map[string]any, timeout time.Duration) NodeResult {
	scan, err := Scan(node.Code, node.FunctionName)
	if err != nil {
		return NodeResult{NodeID: node.NodeID, Success: false, Error: err.Error()}
	}

	i := interp.New(interp.Options{})
	if useErr := i.Use(stdlib.Symbols); useErr != nil {
		return NodeResult{NodeID: node.NodeID, Success: false,
			Error: fmt.Sprintf("sandbox setup failed: %v", useErr)}
	}

	if _, evalErr := i.Eval(wrapForExec(node.Code)); evalErr != nil {
		return NodeResult{NodeID: node.NodeID, Success: false,
			Error: fmt.Sprintf("sandbox compile error: %v", evalErr)}
	}

	fnVal, evalErr := i.Eval("sandboxnode." + node.FunctionName)
	if evalErr != nil {
		return NodeResult{NodeID: node.NodeID, Success: false,
			Error: fmt.Sprintf("function %q not found after evaluation: %v", node.FunctionName, evalErr)}
	}

	args, argErr := positionalArgs(fnVal, scan.ParamNames, resolvedInputs)
	if argErr != nil {
		return NodeResult{NodeID: node.NodeID, Success: false, Error: argErr.Error()}
	}

	if timeout <= 0 {
		timeout = DefaultNodeTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	return callWithTimeout(node.NodeID, fnVal, args, timeout)
}

// wrapForExec wraps a node's bare code in the package clause yaegi expects.
// Imports remain in the code itself; Scan has already verified they are
// all allowlisted.
func wrapForExec(code string) string {
	return "package sandboxnode\n\n" + code
}

// positionalArgs matches resolvedInputs (keyed by declared parameter name)
// to the function's positional argument order, since reflect.Value does not
// preserve parameter names from source.
func positionalArgs(fnVal reflect.Value, paramNames []string, resolvedInputs map[string]any) ([]reflect.Value, error) {
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("sandbox: evaluated symbol is not a function")
	}
	if fnType.NumIn() != len(paramNames) {
		return nil, fmt.Errorf("sandbox: parameter count mismatch: declared %d, signature has %d",
			len(paramNames), fnType.NumIn())
	}

	args := make([]reflect.Value, len(paramNames))
	for idx, name := range paramNames {
		v, ok := resolvedInputs[name]
		if !ok {
			return nil, fmt.Errorf("sandbox: no resolved input for parameter %q", name)
		}
		argType := fnType.In(idx)
		argVal := reflect.ValueOf(v)
		if !argVal.IsValid() {
			args[idx] = reflect.Zero(argType)
			continue
		}
		if !argVal.Type().AssignableTo(argType) && argVal.Type().ConvertibleTo(argType) {
			argVal = argVal.Convert(argType)
		}
		args[idx] = argVal
	}
	return args, nil
}

// callWithTimeout invokes fn in a goroutine so a pathological infinite loop
// in node code cannot hang the caller indefinitely; it still leaks that
// goroutine if the node never returns (there is no way to forcibly preempt
// a running Go call), matching the "bounded, not forcibly killed" timeout
// contract the spec's open question leaves to implementers.
func callWithTimeout(nodeID string, fn reflect.Value, args []reflect.Value, timeout time.Duration) (result NodeResult) {
	type outcome struct {
		out []reflect.Value
		rec any
		dur time.Duration
	}
	done := make(chan outcome, 1)

	go func() {
		start := time.Now()
		defer func() {
			rec := recover()
			done <- outcome{rec: rec, dur: time.Since(start)}
		}()
		out := fn.Call(args)
		done <- outcome{out: out, dur: time.Since(start)}
	}()

	select {
	case o := <-done:
		if o.rec != nil {
			return NodeResult{NodeID: nodeID, Success: false,
				Error:           fmt.Sprintf("panic: %v", o.rec),
				ExecutionTimeMs: float64(o.dur.Microseconds()) / 1000.0}
		}
		return resultFromReturn(nodeID, o.out, o.dur)
	case <-time.After(timeout):
		return NodeResult{NodeID: nodeID, Success: false,
			Error: fmt.Sprintf("execution exceeded %s timeout", timeout)}
	}
}

// resultFromReturn interprets a function's return values as (value) or
// (value, error), matching the common Go convention the teacher's own
// controllers use throughout.
func resultFromReturn(nodeID string, out []reflect.Value, dur time.Duration) NodeResult {
	ms := float64(dur.Microseconds()) / 1000.0
	switch len(out) {
	case 0:
		return NodeResult{NodeID: nodeID, Success: true, ExecutionTimeMs: ms}
	case 1:
		return NodeResult{NodeID: nodeID, Success: true, Output: extract(out[0]), ExecutionTimeMs: ms}
	default:
		last := out[len(out)-1]
		if isErrorType(last.Type()) && !last.IsNil() {
			errVal, _ := last.Interface().(error)
			return NodeResult{NodeID: nodeID, Success: false, Error: errVal.Error(), ExecutionTimeMs: ms}
		}
		return NodeResult{NodeID: nodeID, Success: true, Output: extract(out[0]), ExecutionTimeMs: ms}
	}
}

func extract(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	return v.Interface()
}

var errorInterfaceType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorType(t reflect.Type) bool {
	return t.Implements(errorInterfaceType)
}
