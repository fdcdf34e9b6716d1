// Package operation implements the operation engine (C2): a typed,
// composable interpreter over internal/stack.Stack, combining six
// families — Stack, String, Decode, Format, Check, Control — into
// credential/usage extraction pipelines.
//
// Operation is modeled as a Go interface rather than a Rust-style
// enum; each family member is its own struct implementing Op, and
// Control/Check variants reference nested Pipelines by value — the
// interface's dynamic dispatch is the heap indirection the original
// design calls out as the way to bound the recursive variant's
// compile-time size (spec.md §9).
package operation

import (
	"log/slog"

	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// Op is one operation in a pipeline. Exec takes the current stack and
// returns the next stack, or an error.
type Op interface {
	Exec(ctx *Context, s stack.Stack) (stack.Stack, error)
}

// Context carries the dependencies an operation may need beyond the
// stack itself: a logger for Values/Log, and hooks injected by the
// caller (e.g. the Format family's Json/ProtoBuf parsing target is
// plain bytes, no context needed there).
type Context struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Pipeline is an ordered sequence of operations interpreted strictly
// left to right. Exec enforces the core invariant from spec.md §3: the
// stack must never be empty between two operations; an operation that
// drains it fails the whole pipeline with ErrNoOutputValue.
type Pipeline []Op

// Exec runs the pipeline over s, returning the final stack or the
// first error encountered.
func (p Pipeline) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	cur := s
	for _, op := range p {
		next, err := op.Exec(ctx, cur)
		if err != nil {
			ctx.recordFailure()
			return nil, err
		}
		if next.Empty() {
			ctx.recordFailure()
			return nil, ErrNoOutputValue
		}
		cur = next
	}
	ctx.recordSuccess()
	return cur, nil
}

func (c *Context) recordSuccess() {
	if c != nil && c.Metrics != nil {
		c.Metrics.PipelinesExecuted.Inc()
	}
}

func (c *Context) recordFailure() {
	if c != nil && c.Metrics != nil {
		c.Metrics.PipelinesExecuted.Inc()
		c.Metrics.PipelineFailures.Inc()
	}
}

// Clone returns a pipeline referencing the same operations (operations
// are themselves immutable values/structs, so this is a shallow, cheap
// clone — matching spec.md §3's "operations are cheaply cloneable").
func (p Pipeline) Clone() Pipeline {
	out := make(Pipeline, len(p))
	copy(out, p)
	return out
}

// Result controls where a branch's output is spliced back into the
// preserved stack for Control.Cloned and Control.Partial.
type Result int

const (
	ResultAppend Result = iota
	ResultPrepend
)

func combine(preserved, branch stack.Stack, r Result) stack.Stack {
	out := make(stack.Stack, 0, len(preserved)+len(branch))
	if r == ResultPrepend {
		out = append(out, branch...)
		out = append(out, preserved...)
		return out
	}
	out = append(out, preserved...)
	out = append(out, branch...)
	return out
}
