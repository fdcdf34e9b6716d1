package operation

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/3scale-labs/authrep-filter/internal/stack"
	"github.com/3scale-labs/authrep-filter/internal/value"
)

// FormatPlain is the identity transform.
type FormatPlain struct{}

func (o FormatPlain) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	return s, nil
}

// FormatJoined splits the top element by Sep (respecting Max, as
// StringSplit does), then emits the elements at Indexes in order; any
// index missing after the split fails the operation.
type FormatJoined struct {
	Sep     string
	Max     int
	Indexes []int
}

func (o FormatJoined) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyFormat, "joined", ErrEmptyStack)
	}
	parts := splitN(top, o.Sep, o.Max, false)
	out := make(stack.Stack, 0, len(o.Indexes))
	for _, i := range o.Indexes {
		if i >= len(parts) || i < -len(parts) {
			return nil, wrapErr(FamilyFormat, "joined", ErrJoinedMissingIndex)
		}
		idx, err := stack.ResolveIndex(i, len(parts))
		if err != nil {
			return nil, wrapErr(FamilyFormat, "joined", ErrJoinedMissingIndex)
		}
		out = append(out, parts[idx])
	}
	return append(rest, out...), nil
}

// FormatJson parses the top element as JSON, walks Path, then applies
// value.MatchOne(Keys) to the reached value, requiring a string terminal.
type FormatJson struct {
	Path []string
	Keys []string
}

func (o FormatJson) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyFormat, "json", ErrEmptyStack)
	}
	var raw any
	if err := json.Unmarshal([]byte(top), &raw); err != nil {
		return nil, wrapErr(FamilyFormat, "json", ErrMalformedPayload)
	}
	str, err := matchStringTerminal(value.NewJSON(raw), o.Path, o.Keys)
	if err != nil {
		return nil, wrapErr(FamilyFormat, "json", err)
	}
	return append(rest, str), nil
}

// FormatProtoBuf is FormatJson's analog for a protobuf-Struct-encoded
// byte string: the top element's bytes are unmarshaled as a
// structpb.Struct before the same Path/Keys walk.
type FormatProtoBuf struct {
	Path []string
	Keys []string
}

func (o FormatProtoBuf) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyFormat, "protobuf", ErrEmptyStack)
	}
	msg := &structpb.Struct{}
	if err := proto.Unmarshal([]byte(top), msg); err != nil {
		return nil, wrapErr(FamilyFormat, "protobuf", ErrMalformedPayload)
	}
	str, err := matchStringTerminal(value.NewProtoStruct(msg), o.Path, o.Keys)
	if err != nil {
		return nil, wrapErr(FamilyFormat, "protobuf", err)
	}
	return append(rest, str), nil
}

func matchStringTerminal(v value.Value, path, keys []string) (string, error) {
	reached, err := value.Lookup(v, path)
	if err != nil {
		return "", err
	}
	final := reached
	if len(keys) > 0 {
		matched, ok := value.MatchOne(reached, keys)
		if !ok {
			return "", ErrNotAString
		}
		final = matched
	}
	str, ok := final.AsStr()
	if !ok {
		return "", ErrNotAString
	}
	return str, nil
}
