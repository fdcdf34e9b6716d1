// Package stack implements the string stack threaded through an
// operation pipeline (see internal/operation).
//
// Go strings are immutable and slicing never copies the backing array,
// so a Stack element taken directly from a header or query value is
// already a zero-copy "borrow" in the sense the original design
// distinguishes explicitly; no separate borrowed/owned variant is
// needed here.
package stack

import "fmt"

// Stack is the ordered sequence of string values an operation pipeline
// reduces over. A nil or empty Stack is only ever a valid intermediate
// state between individual operation calls; the engine in
// internal/operation rejects it between pipeline steps.
type Stack []string

// Clone returns an independent copy of the stack. Operations that
// branch (Check.Any/All/None, Control.Test/Or/And/Xor/Cloned) clone
// before running a nested pipeline so the branch cannot mutate the
// caller's working stack.
func (s Stack) Clone() Stack {
	if s == nil {
		return nil
	}
	out := make(Stack, len(s))
	copy(out, s)
	return out
}

// Empty reports whether the stack has no elements.
func (s Stack) Empty() bool {
	return len(s) == 0
}

// Top returns the last element and true, or "" and false if empty.
func (s Stack) Top() (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}

// ErrIndexOutOfRange is returned by ResolveIndex when a signed index
// does not resolve into [0, n) even after the negative-wraparound
// normalization described below.
var ErrIndexOutOfRange = fmt.Errorf("stack: index out of range")

// ResolveIndex implements the signed-index convention used throughout
// the Stack family of operations (Dup, Swap, Indexes, ...): index i
// resolves to i when 0 <= i < n; otherwise it is taken modulo n and
// reinterpreted as non-negative (-1 => n-1, -2 => n-2, ...). An index
// that still falls outside [0, n) after normalization is out of range.
func ResolveIndex(i, n int) (int, error) {
	if n == 0 {
		return 0, ErrIndexOutOfRange
	}
	if i >= 0 && i < n {
		return i, nil
	}
	norm := i % n
	if norm < 0 {
		norm += n
	}
	if norm < 0 || norm >= n {
		return 0, ErrIndexOutOfRange
	}
	return norm, nil
}
