// Package source implements the source resolver (C3): picking a raw
// stack out of request headers, query parameters, or filter-chain
// metadata, then running an optional operation pipeline over it. It is
// the strategy-pattern sibling of the teacher's webhook format
// detector, swapping "detect a webhook shape" for "resolve one stack
// from one of three request surfaces".
package source

import (
	"errors"
	"net/url"

	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/stack"
	"github.com/3scale-labs/authrep-filter/internal/value"
)

// ErrNotFound is returned by Resolve when no key yields a value, or
// when an attached operation pipeline fails — per spec.md §4.3, pipeline
// failure at a source is indistinguishable from "source not found".
var ErrNotFound = errors.New("source: no value resolved")

// Request is the narrow view of an inbound request the source resolver
// needs: raw header lookup, parsed query, and the filter-metadata blob
// the host attaches to the request (keyed by filter name at its root,
// so Filter.Path conventionally starts with a filter name segment).
type Request interface {
	Header(name string) (string, bool)
	Query() url.Values
	FilterMetadata() (value.Value, bool)
}

// Source is a tagged variant over {Header, QueryString, Filter}.
type Source interface {
	Resolve(req Request, ctx *operation.Context) (stack.Stack, error)
}

func runOps(ops operation.Pipeline, ctx *operation.Context, s stack.Stack) (stack.Stack, error) {
	if len(ops) == 0 {
		return s, nil
	}
	out, err := ops.Exec(ctx, s)
	if err != nil {
		return nil, ErrNotFound
	}
	return out, nil
}

// Header looks up each key in order against request headers; the
// first hit yields a one-element stack.
type Header struct {
	Keys []string
	Ops  operation.Pipeline
}

func (h Header) Resolve(req Request, ctx *operation.Context) (stack.Stack, error) {
	for _, k := range h.Keys {
		if v, ok := req.Header(k); ok {
			return runOps(h.Ops, ctx, stack.Stack{v})
		}
	}
	return nil, ErrNotFound
}

// QueryString looks up each key in order against the decoded query
// string; the first key present yields its value. Values come from
// url.Values, already detached from the request's URL backing.
type QueryString struct {
	Keys []string
	Ops  operation.Pipeline
}

func (q QueryString) Resolve(req Request, ctx *operation.Context) (stack.Stack, error) {
	values := req.Query()
	for _, k := range q.Keys {
		if vs, ok := values[k]; ok && len(vs) > 0 {
			return runOps(q.Ops, ctx, stack.Stack{vs[0]})
		}
	}
	return nil, ErrNotFound
}

// Filter reads the host-provided filter-metadata blob, walks Path,
// then applies value.MatchOne(Keys) to the reached value. The matched
// value must be a string, a homogeneous list of strings, or a
// single-field struct of a string (spec.md §4.3); anything else is
// ErrNotFound.
type Filter struct {
	Path []string
	Keys []string
	Ops  operation.Pipeline
}

func (f Filter) Resolve(req Request, ctx *operation.Context) (stack.Stack, error) {
	blob, ok := req.FilterMetadata()
	if !ok {
		return nil, ErrNotFound
	}
	reached, err := value.Lookup(blob, f.Path)
	if err != nil {
		return nil, ErrNotFound
	}
	matched, ok := value.MatchOne(reached, f.Keys)
	if !ok {
		return nil, ErrNotFound
	}
	s, err := coerceStack(matched)
	if err != nil {
		return nil, ErrNotFound
	}
	return runOps(f.Ops, ctx, s)
}

func coerceStack(v value.Value) (stack.Stack, error) {
	if str, ok := v.AsStr(); ok {
		return stack.Stack{str}, nil
	}
	if list, ok := v.AsList(); ok {
		out := make(stack.Stack, 0, len(list))
		for _, elem := range list {
			str, ok := elem.AsStr()
			if !ok {
				return nil, ErrNotFound
			}
			out = append(out, str)
		}
		return out, nil
	}
	if fields, ok := v.AsStruct(); ok && len(fields) == 1 {
		for _, fv := range fields {
			str, ok := fv.AsStr()
			if !ok {
				return nil, ErrNotFound
			}
			return stack.Stack{str}, nil
		}
	}
	return nil, ErrNotFound
}
