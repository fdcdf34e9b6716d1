package operation

import (
	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// CheckAny succeeds if at least one nested pipeline in Alternatives
// succeeds, leaving the stack at the first success's output.
type CheckAny struct {
	Alternatives []Pipeline
}

func (o CheckAny) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	for _, p := range o.Alternatives {
		if out, err := p.Exec(ctx, s.Clone()); err == nil {
			return out, nil
		}
	}
	return nil, wrapErr(FamilyCheck, "any", ErrCheckFailed)
}

// CheckOneOf is CheckAny with an exclusivity requirement: exactly one
// alternative must succeed.
type CheckOneOf struct {
	Alternatives []Pipeline
}

func (o CheckOneOf) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	var out stack.Stack
	hits := 0
	for _, p := range o.Alternatives {
		if res, err := p.Exec(ctx, s.Clone()); err == nil {
			hits++
			out = res
			if hits > 1 {
				return nil, wrapErr(FamilyCheck, "one_of", ErrOneOfAmbiguous)
			}
		}
	}
	if hits != 1 {
		return nil, wrapErr(FamilyCheck, "one_of", ErrCheckFailed)
	}
	return out, nil
}

// CheckAll requires every nested pipeline in Ops to succeed against
// the same starting stack, returning the stack unchanged (checks are
// pure assertions, not transforms, once combined this way).
type CheckAll struct {
	Ops []Pipeline
}

func (o CheckAll) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	for _, p := range o.Ops {
		if _, err := p.Exec(ctx, s.Clone()); err != nil {
			return nil, wrapErr(FamilyCheck, "all", ErrCheckFailed)
		}
	}
	return s, nil
}

// CheckNone requires every nested pipeline in Ops to fail.
type CheckNone struct {
	Ops []Pipeline
}

func (o CheckNone) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	for _, p := range o.Ops {
		if _, err := p.Exec(ctx, s.Clone()); err == nil {
			return nil, wrapErr(FamilyCheck, "none", ErrCheckFailed)
		}
	}
	return s, nil
}

// CheckAssert is CheckAll for a single nested pipeline, under the
// distinct assertion-failure error.
type CheckAssert struct {
	Ops Pipeline
}

func (o CheckAssert) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	if _, err := o.Ops.Exec(ctx, s.Clone()); err != nil {
		return nil, wrapErr(FamilyCheck, "assert", ErrAssertionFailed)
	}
	return s, nil
}

// CheckRefute is CheckAssert inverted: the nested pipeline must fail.
type CheckRefute struct {
	Ops Pipeline
}

func (o CheckRefute) Exec(ctx *Context, s stack.Stack) (stack.Stack, error) {
	if _, err := o.Ops.Exec(ctx, s.Clone()); err == nil {
		return nil, wrapErr(FamilyCheck, "refute", ErrRefutationFailed)
	}
	return s, nil
}

// CheckOk always succeeds, leaving the stack untouched.
type CheckOk struct{}

func (o CheckOk) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	return s, nil
}

// CheckFail always fails.
type CheckFail struct{}

func (o CheckFail) Exec(_ *Context, _ stack.Stack) (stack.Stack, error) {
	return nil, wrapErr(FamilyCheck, "fail", ErrExplicitFail)
}
