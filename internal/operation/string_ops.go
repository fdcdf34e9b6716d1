package operation

import (
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// popTop splits s into its prefix and its top (last) element. Callers
// must check ok before using top.
func popTop(s stack.Stack) (rest stack.Stack, top string, ok bool) {
	if len(s) == 0 {
		return s, "", false
	}
	return s[:len(s)-1], s[len(s)-1], true
}

// LengthMode selects character vs byte counting for StringLength.
type LengthMode string

const (
	LengthUTF8  LengthMode = "utf8"
	LengthBytes LengthMode = "bytes"
)

// StringLength bounds-checks the top element's length without
// consuming it.
type StringLength struct {
	Min, Max int
	Mode     LengthMode
}

func (o StringLength) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	_, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "length", ErrEmptyStack)
	}
	n := len(top)
	if o.Mode == LengthUTF8 {
		n = utf8.RuneCountInString(top)
	}
	if n < o.Min || (o.Max > 0 && n > o.Max) {
		return nil, wrapErr(FamilyString, "length", ErrStringLength)
	}
	return s, nil
}

// StringReverse reverses the Unicode scalars of the top element.
type StringReverse struct{}

func (o StringReverse) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "reverse", ErrEmptyStack)
	}
	runes := []rune(top)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return append(rest, string(runes)), nil
}

// Split splits the top element by Sep, pushing all parts. If Max > 0,
// splits at most Max-1 times (mirroring strings.SplitN).
type StringSplit struct {
	Sep string
	Max int
}

func (o StringSplit) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "split", ErrEmptyStack)
	}
	parts := splitN(top, o.Sep, o.Max, false)
	return append(rest, parts...), nil
}

// RSplit is Split from the right.
type StringRSplit struct {
	Sep string
	Max int
}

func (o StringRSplit) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "rsplit", ErrEmptyStack)
	}
	parts := splitN(top, o.Sep, o.Max, true)
	return append(rest, parts...), nil
}

func splitN(s, sep string, max int, fromRight bool) []string {
	if max > 0 {
		if fromRight {
			return rsplitN(s, sep, max)
		}
		return strings.SplitN(s, sep, max)
	}
	if fromRight {
		parts := strings.Split(s, sep)
		return parts
	}
	return strings.Split(s, sep)
}

func rsplitN(s, sep string, n int) []string {
	if n <= 0 {
		return strings.Split(s, sep)
	}
	// strings.SplitN has no rightward variant in the standard library;
	// build one on top of LastIndex, splitting at most n-1 times
	// starting from the end.
	var parts []string
	for len(parts) < n-1 {
		idx := strings.LastIndex(s, sep)
		if idx < 0 {
			break
		}
		parts = append([]string{s[idx+len(sep):]}, parts...)
		s = s[:idx]
	}
	return append([]string{s}, parts...)
}

// Replace replaces occurrences of Pattern with With in the top
// element, literal (not regex), first Max occurrences or all if Max <= 0.
type StringReplace struct {
	Pattern, With string
	Max           int
}

func (o StringReplace) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "replace", ErrEmptyStack)
	}
	n := o.Max
	if n <= 0 {
		n = -1
	}
	return append(rest, strings.Replace(top, o.Pattern, o.With, n)), nil
}

// Prefix asserts the top element has the given prefix, leaving it
// intact.
type StringPrefix struct {
	S string
}

func (o StringPrefix) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	_, top, ok := popTop(s)
	if !ok || !strings.HasPrefix(top, o.S) {
		return nil, wrapErr(FamilyString, "prefix", ErrPrefixMismatch)
	}
	return s, nil
}

// Suffix asserts the top element has the given suffix, leaving it intact.
type StringSuffix struct {
	S string
}

func (o StringSuffix) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	_, top, ok := popTop(s)
	if !ok || !strings.HasSuffix(top, o.S) {
		return nil, wrapErr(FamilyString, "suffix", ErrSuffixMismatch)
	}
	return s, nil
}

// SubString asserts the top element contains S, leaving it intact.
type StringSubString struct {
	S string
}

func (o StringSubString) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	_, top, ok := popTop(s)
	if !ok || !strings.Contains(top, o.S) {
		return nil, wrapErr(FamilyString, "substr", ErrSubstringAbsent)
	}
	return s, nil
}

// Glob asserts any pattern in Patterns matches the top element, using
// doublestar glob semantics (the "glob-pattern matching machinery"
// spec.md §1 externalizes). Leaves the top intact.
type StringGlob struct {
	Patterns []string
}

func (o StringGlob) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	_, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyString, "glob", ErrEmptyStack)
	}
	for _, p := range o.Patterns {
		if matched, err := doublestar.Match(p, top); err == nil && matched {
			return s, nil
		}
	}
	return nil, wrapErr(FamilyString, "glob", ErrGlobNoMatch)
}
