package operation

import (
	"strings"

	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// StackLength fails with ErrRequirementNotSatisfied if the stack
// length falls outside [Min, Max]. Max <= 0 means unbounded.
type StackLength struct {
	Min, Max int
}

func (o StackLength) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	n := len(s)
	if n < o.Min || (o.Max > 0 && n > o.Max) {
		return nil, wrapErr(FamilyStack, "length", ErrRequirementNotSatisfied)
	}
	return s, nil
}

// StackJoin replaces all elements with a single element equal to
// their concatenation by Sep.
type StackJoin struct {
	Sep string
}

func (o StackJoin) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	return stack.Stack{strings.Join(s, o.Sep)}, nil
}

// StackReverse reverses the stack in place.
type StackReverse struct{}

func (o StackReverse) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	out := make(stack.Stack, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out, nil
}

// StackContains fails unless some element equals S.
type StackContains struct {
	S string
}

func (o StackContains) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	for _, v := range s {
		if v == o.S {
			return s, nil
		}
	}
	return nil, wrapErr(FamilyStack, "contains", ErrContainsNotFound)
}

// StackPush appends a literal element.
type StackPush struct {
	S string
}

func (o StackPush) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	out := append(stack.Stack{}, s...)
	return append(out, o.S), nil
}

// StackPop drops the last N elements (default 1).
type StackPop struct {
	N int
}

func (o StackPop) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	n := o.N
	if n <= 0 {
		n = 1
	}
	if n > len(s) {
		n = len(s)
	}
	return append(stack.Stack{}, s[:len(s)-n]...), nil
}

// StackDup duplicates the element at signed index I (default -1, the
// top). Set HasI to use I; otherwise -1 is assumed.
type StackDup struct {
	I    int
	HasI bool
}

func (o StackDup) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	idx := -1
	if o.HasI {
		idx = o.I
	}
	resolved, err := stack.ResolveIndex(idx, len(s))
	if err != nil {
		return nil, wrapErr(FamilyStack, "dup", ErrIndexOutOfRange)
	}
	out := append(stack.Stack{}, s...)
	return append(out, s[resolved]), nil
}

// StackXchg replaces the top element with S; fails on an empty stack.
type StackXchg struct {
	S string
}

func (o StackXchg) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	if len(s) == 0 {
		return nil, wrapErr(FamilyStack, "xchg", ErrEmptyStack)
	}
	out := append(stack.Stack{}, s[:len(s)-1]...)
	return append(out, o.S), nil
}

// StackTake retains the first Head plus last Tail elements. Missing
// bounds imply zero, so StackTake{} drains the stack (triggering
// ErrNoOutputValue at the pipeline level — intentional, per spec.md §3).
type StackTake struct {
	Head, Tail int
}

func (o StackTake) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	n := len(s)
	head, tail := clampSpan(o.Head, o.Tail, n)
	out := make(stack.Stack, 0, head+tail)
	out = append(out, s[:head]...)
	out = append(out, s[n-tail:]...)
	return out, nil
}

// StackDrop removes the first Head plus last Tail elements.
type StackDrop struct {
	Head, Tail int
}

func (o StackDrop) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	n := len(s)
	head, tail := clampSpan(o.Head, o.Tail, n)
	if head+tail >= n {
		return stack.Stack{}, nil
	}
	return append(stack.Stack{}, s[head:n-tail]...), nil
}

func clampSpan(head, tail, n int) (int, int) {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	if head > n {
		head = n
	}
	if tail > n-head {
		tail = n - head
	}
	return head, tail
}

// StackSwap exchanges the elements at signed indexes From and To; a
// no-op if they resolve to the same position.
type StackSwap struct {
	From, To int
}

func (o StackSwap) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	n := len(s)
	from, err := stack.ResolveIndex(o.From, n)
	if err != nil {
		return nil, wrapErr(FamilyStack, "swap", ErrIndexOutOfRange)
	}
	to, err := stack.ResolveIndex(o.To, n)
	if err != nil {
		return nil, wrapErr(FamilyStack, "swap", ErrIndexOutOfRange)
	}
	out := append(stack.Stack{}, s...)
	if from != to {
		out[from], out[to] = out[to], out[from]
	}
	return out, nil
}

// StackIndexes replaces the stack with the selected elements in the
// given order. An empty list means identity.
type StackIndexes struct {
	I []int
}

func (o StackIndexes) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	if len(o.I) == 0 {
		return s, nil
	}
	out := make(stack.Stack, 0, len(o.I))
	for _, i := range o.I {
		resolved, err := stack.ResolveIndex(i, len(s))
		if err != nil {
			return nil, wrapErr(FamilyStack, "indexes", ErrIndexOutOfRange)
		}
		out = append(out, s[resolved])
	}
	return out, nil
}

// StackFlatMap runs Ops over a one-element stack for each element and
// concatenates the results.
type StackFlatMap struct {
	Ops Pipeline
}

func (o StackFlatMap) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	out := stack.Stack{}
	for _, v := range s {
		res, err := o.Ops.Exec(ctx, stack.Stack{v})
		if err != nil {
			return nil, wrapErr(FamilyStack, "flat_map", err)
		}
		out = append(out, res...)
	}
	return out, nil
}

// StackSelect runs Ops per element like StackFlatMap, but drops
// elements for which Ops fails instead of propagating the failure.
type StackSelect struct {
	Ops Pipeline
}

func (o StackSelect) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	out := stack.Stack{}
	for _, v := range s {
		res, err := o.Ops.Exec(ctx, stack.Stack{v})
		if err != nil {
			continue
		}
		out = append(out, res...)
	}
	return out, nil
}

// StackValues logs the current stack at Level (identity on the stack
// itself). ID optionally tags the log line for correlating multiple
// StackValues calls in one pipeline.
type StackValues struct {
	Level string
	ID    string
}

func (o StackValues) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	logAtLevel(ctx.logger(), o.Level, "operation stack snapshot", "id", o.ID, "stack", []string(s))
	return s, nil
}
