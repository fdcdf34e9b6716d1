// Package value implements the polymorphic value-lookup adapter (C1):
// a single lookup/match contract shared by a JSON-like dynamic value
// and a protobuf-Struct-like value, so the rest of the extraction
// engine (internal/operation's Format family, internal/source's
// Filter source) never needs to know which backing representation it
// is walking.
package value

import (
	"fmt"
	"strconv"
)

// Kind tags the shape of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is the capability set every backing representation (JSON,
// protobuf Struct) must provide. Implementations are read-only views
// over already-parsed data; parsing itself is an external concern
// (encoding/json, structpb) per spec.md §1.
type Value interface {
	Kind() Kind
	AsStr() (string, bool)
	AsList() ([]Value, bool)
	AsStruct() (map[string]Value, bool)
	AsNumber() (float64, bool)
	AsBool() (bool, bool)
}

// LookupError reports the path segment that could not be resolved and
// the kind of the value that stopped the walk.
type LookupError struct {
	Segment string
	Kind    Kind
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("value: segment %q not reachable from a %s", e.Segment, e.Kind)
}

// MatchOne implements the shared match policy described in spec.md
// §4.1: the first key in keys that resolves against v wins.
//
//   - Struct: first key hitting a field; if the struct has exactly one
//     field and keys contains "0", that sole field is returned as a
//     fallback (mirrors positional access into a single-claim JWT
//     struct coming from filter metadata).
//   - List: first key that parses as a non-negative in-range index.
//   - Scalar (string/number/bool): the key whose parsed value equals
//     the scalar.
//   - Null: never matches.
func MatchOne(v Value, keys []string) (Value, bool) {
	switch v.Kind() {
	case KindStruct:
		fields, _ := v.AsStruct()
		for _, k := range keys {
			if fv, ok := fields[k]; ok {
				return fv, true
			}
		}
		if len(fields) == 1 {
			for _, k := range keys {
				if k == "0" {
					for _, fv := range fields {
						return fv, true
					}
				}
			}
		}
		return nil, false
	case KindList:
		list, _ := v.AsList()
		for _, k := range keys {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 || idx >= len(list) {
				continue
			}
			return list[idx], true
		}
		return nil, false
	case KindString:
		s, _ := v.AsStr()
		for _, k := range keys {
			if k == s {
				return v, true
			}
		}
		return nil, false
	case KindNumber:
		n, _ := v.AsNumber()
		for _, k := range keys {
			if f, err := strconv.ParseFloat(k, 64); err == nil && f == n {
				return v, true
			}
		}
		return nil, false
	case KindBool:
		b, _ := v.AsBool()
		for _, k := range keys {
			if pb, err := strconv.ParseBool(k); err == nil && pb == b {
				return v, true
			}
		}
		return nil, false
	default: // KindNull
		return nil, false
	}
}

// Lookup walks path segment by segment using MatchOne at each step. An
// empty segment is a no-op (it does not advance the walk). Lookup
// returns the terminal value, or a *LookupError naming the failing
// segment and the kind of the value it failed against.
func Lookup(v Value, path []string) (Value, error) {
	cur := v
	for _, seg := range path {
		if seg == "" {
			continue
		}
		next, ok := MatchOne(cur, []string{seg})
		if !ok {
			return nil, &LookupError{Segment: seg, Kind: cur.Kind()}
		}
		cur = next
	}
	return cur, nil
}
