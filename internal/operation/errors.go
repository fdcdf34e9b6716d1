package operation

import (
	"errors"
	"fmt"
)

// ErrNoOutputValue is returned by Pipeline.Exec when an operation
// drains the stack to empty mid-pipeline (spec.md §3 invariant).
var ErrNoOutputValue = errors.New("operation: pipeline produced no output value")

// Family identifies which of the six operation families raised an
// error, so callers (and logs) can tell a StackError from a
// StringOpError without a type switch on every concrete type.
type Family string

const (
	FamilyStack   Family = "stack"
	FamilyString  Family = "string"
	FamilyDecode  Family = "decode"
	FamilyFormat  Family = "format"
	FamilyCheck   Family = "check"
	FamilyControl Family = "control"
)

// Error is the unifying OperationError: every family-specific error
// returned by an Op.Exec is wrapped in one of these so pipeline
// failures can be logged uniformly while errors.As / errors.Is still
// reach the concrete cause.
type Error struct {
	Family Family
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("operation: %s.%s: %v", e.Family, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(family Family, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Family: family, Op: op, Err: err}
}

// Family-specific sentinel causes. These are the leaves Error.Err
// wraps; boxed behind the single Error type so the recursive
// FlatMap/Select/branching operations don't grow an unbounded chain of
// nested concrete error types (spec.md §4.2, "inner operation errors
// propagate through a boxed variant").
var (
	ErrRequirementNotSatisfied = errors.New("stack length requirement not satisfied")
	ErrEmptyStack              = errors.New("operation requires a non-empty stack")
	ErrIndexOutOfRange         = errors.New("index out of range")
	ErrContainsNotFound        = errors.New("no element equals the required value")
	ErrMissingIndexes          = errors.New("one or more requested indexes missing")

	ErrStringLength  = errors.New("string length out of bounds")
	ErrPrefixMismatch = errors.New("string does not have the required prefix")
	ErrSuffixMismatch = errors.New("string does not have the required suffix")
	ErrSubstringAbsent = errors.New("string does not contain the required substring")
	ErrGlobNoMatch    = errors.New("string matches no pattern in the glob set")

	ErrBase64 = errors.New("invalid base64 encoding")
	ErrUTF8   = errors.New("decoded bytes are not valid utf-8")

	ErrJoinedMissingIndex = errors.New("joined: requested index missing after split")
	ErrNotAString         = errors.New("terminal value is not a string")
	ErrMalformedPayload   = errors.New("malformed json/protobuf payload")

	ErrCheckFailed      = errors.New("check failed")
	ErrOneOfAmbiguous   = errors.New("more than one alternative succeeded")
	ErrAssertionFailed  = errors.New("assertion failed")
	ErrRefutationFailed = errors.New("refutation failed: nested pipeline unexpectedly succeeded")
	ErrExplicitFail     = errors.New("explicit fail operation")

	ErrTestConditionFailed = errors.New("test condition failed and no else branch taken")
	ErrNoBranchSucceeded   = errors.New("no branch succeeded")
	ErrXorAmbiguous        = errors.New("more than one branch succeeded")
	ErrAndBranchFailed     = errors.New("one or more branches failed")
	ErrSplitExceedsStack   = errors.New("requested split is larger than the stack")
)
