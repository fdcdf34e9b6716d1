package operation

import (
	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// ControlTest runs Cond on a clone of the stack as a pure predicate;
// on success it runs Then against the original stack, on failure Else
// (if HasElse) or ErrTestConditionFailed.
type ControlTest struct {
	Cond    Pipeline
	Then    Pipeline
	Else    Pipeline
	HasElse bool
}

func (o ControlTest) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	if _, err := o.Cond.Exec(ctx, s.Clone()); err == nil {
		return o.Then.Exec(ctx, s)
	}
	if o.HasElse {
		return o.Else.Exec(ctx, s)
	}
	return nil, wrapErr(FamilyControl, "test", ErrTestConditionFailed)
}

// ControlOr tries Branches in order against independent clones of the
// stack and returns the first branch's own output, discarding the
// rest — unlike Cloned/Partial, the original stack is not preserved.
type ControlOr struct {
	Branches []Pipeline
}

func (o ControlOr) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	for _, p := range o.Branches {
		if out, err := p.Exec(ctx, s.Clone()); err == nil {
			return out, nil
		}
	}
	return nil, wrapErr(FamilyControl, "or", ErrNoBranchSucceeded)
}

// ControlAnd requires every branch to succeed against an independent
// clone of the stack, then splices their outputs together in order
// via Result.
type ControlAnd struct {
	Branches []Pipeline
	Result   Result
}

func (o ControlAnd) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	acc := stack.Stack{}
	for _, p := range o.Branches {
		out, err := p.Exec(ctx, s.Clone())
		if err != nil {
			return nil, wrapErr(FamilyControl, "and", ErrAndBranchFailed)
		}
		acc = combine(acc, out, o.Result)
	}
	return acc, nil
}

// ControlXor requires exactly one branch to succeed and returns its
// output.
type ControlXor struct {
	Branches []Pipeline
}

func (o ControlXor) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	var out stack.Stack
	hits := 0
	for _, p := range o.Branches {
		if res, err := p.Exec(ctx, s.Clone()); err == nil {
			hits++
			out = res
			if hits > 1 {
				return nil, wrapErr(FamilyControl, "xor", ErrXorAmbiguous)
			}
		}
	}
	if hits != 1 {
		return nil, wrapErr(FamilyControl, "xor", ErrNoBranchSucceeded)
	}
	return out, nil
}

// ControlCloned runs Ops against a clone of the stack and splices its
// output back onto the original (untouched) stack via Result. Failure
// of Ops fails the whole operation.
type ControlCloned struct {
	Ops    Pipeline
	Result Result
}

func (o ControlCloned) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	branch, err := o.Ops.Exec(ctx, s.Clone())
	if err != nil {
		return nil, wrapErr(FamilyControl, "cloned", err)
	}
	return combine(s, branch, o.Result), nil
}

// ControlPartial splits the last N elements off the stack (N derives
// from Max below), runs the single Ops pipeline on that sub-stack, and
// splices its output back onto the preserved remainder via Result —
// a bounded sibling of Cloned that works on a suffix of the stack
// instead of the whole thing. Per spec.md §4.2's literal text ("split
// off the last min(max,1) elements"), N = min(effective-max, 1) where
// effective-max is Max when HasMax, else 1 — which always collapses N
// to 1 (or 0 for a non-positive Max). spec.md §9 flags this as
// possibly not the intent of the sources (an unresolved reading, not
// grounded in anything the sources actually show — see DESIGN.md).
type ControlPartial struct {
	Ops    Pipeline
	Max    int
	HasMax bool
	Result Result
}

func (o ControlPartial) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	effectiveMax := 1
	if o.HasMax {
		effectiveMax = o.Max
	}
	size := effectiveMax
	if size > 1 {
		size = 1
	}
	if size < 0 {
		size = 0
	}
	if size > len(s) {
		return nil, wrapErr(FamilyControl, "partial", ErrSplitExceedsStack)
	}
	cut := len(s) - size
	base := append(stack.Stack{}, s[:cut]...)
	part := append(stack.Stack{}, s[cut:]...)
	branch, err := o.Ops.Exec(ctx, part)
	if err != nil {
		return nil, wrapErr(FamilyControl, "partial", err)
	}
	return combine(base, branch, o.Result), nil
}

// ControlTop pops exactly the top element, runs Ops against the
// resulting one-element stack, and splices every value Ops produces
// back onto the preserved remainder via Result. spec.md §4.2 defines
// Top(ops) with no size parameter — always one element.
type ControlTop struct {
	Ops    Pipeline
	Result Result
}

func (o ControlTop) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	top, ok := s.Top()
	if !ok {
		return nil, wrapErr(FamilyControl, "top", ErrEmptyStack)
	}
	base := append(stack.Stack{}, s[:len(s)-1]...)
	branch, err := o.Ops.Exec(ctx, stack.Stack{top})
	if err != nil {
		return nil, wrapErr(FamilyControl, "top", err)
	}
	return combine(base, branch, o.Result), nil
}

// ControlLog logs Msg at Level without touching the stack — Control's
// counterpart to Stack.Values, for annotating a pipeline's control
// flow rather than dumping its data.
type ControlLog struct {
	Level string
	Msg   string
}

func (o ControlLog) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	logAtLevel(ctx.logger(), o.Level, o.Msg)
	return s, nil
}
