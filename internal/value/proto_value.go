package value

import "google.golang.org/protobuf/types/known/structpb"

// Proto wraps a *structpb.Value — the real protobuf well-known Struct
// type — as a Value. Filter metadata arrives from the host as an
// encoded protobuf Struct (spec.md §4.3); decoding the wire bytes into
// a *structpb.Struct is an external concern, this type only adapts the
// decoded tree to the lookup contract.
type Proto struct {
	raw *structpb.Value
}

// NewProto wraps a decoded protobuf value.
func NewProto(v *structpb.Value) Proto {
	return Proto{raw: v}
}

// NewProtoStruct wraps a decoded protobuf struct as a struct-kind Value.
func NewProtoStruct(s *structpb.Struct) Proto {
	return Proto{raw: structpb.NewStructValue(s)}
}

func (p Proto) Kind() Kind {
	if p.raw == nil {
		return KindNull
	}
	switch p.raw.GetKind().(type) {
	case *structpb.Value_NullValue:
		return KindNull
	case *structpb.Value_BoolValue:
		return KindBool
	case *structpb.Value_NumberValue:
		return KindNumber
	case *structpb.Value_StringValue:
		return KindString
	case *structpb.Value_ListValue:
		return KindList
	case *structpb.Value_StructValue:
		return KindStruct
	default:
		return KindNull
	}
}

func (p Proto) AsStr() (string, bool) {
	if p.Kind() != KindString {
		return "", false
	}
	return p.raw.GetStringValue(), true
}

func (p Proto) AsList() ([]Value, bool) {
	if p.Kind() != KindList {
		return nil, false
	}
	vals := p.raw.GetListValue().GetValues()
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = NewProto(v)
	}
	return out, true
}

func (p Proto) AsStruct() (map[string]Value, bool) {
	if p.Kind() != KindStruct {
		return nil, false
	}
	fields := p.raw.GetStructValue().GetFields()
	out := make(map[string]Value, len(fields))
	for k, v := range fields {
		out[k] = NewProto(v)
	}
	return out, true
}

func (p Proto) AsNumber() (float64, bool) {
	if p.Kind() != KindNumber {
		return 0, false
	}
	return p.raw.GetNumberValue(), true
}

func (p Proto) AsBool() (bool, bool) {
	if p.Kind() != KindBool {
		return false, false
	}
	return p.raw.GetBoolValue(), true
}
