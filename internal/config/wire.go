package config

import (
	"encoding/json"
	"fmt"

	"github.com/3scale-labs/authrep-filter/internal/operation"
	"github.com/3scale-labs/authrep-filter/internal/source"
)

// Operations and sources are serialized as single-key objects whose
// key names the variant (spec.md §6: "untagged variants disambiguated
// structurally"; the known tag names like strlen/strrev/base64_standard
// are exactly these map keys). opWire/sourceWire bridge that wire shape
// onto the operation.Op / source.Source interfaces, since
// encoding/json cannot unmarshal into an interface on its own.
type opWire struct {
	op operation.Op
}

func (w *opWire) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("config: operation: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("config: operation must be a single-key object naming its variant, got %d keys", len(tagged))
	}
	for tag, raw := range tagged {
		ctor, ok := opConstructors[tag]
		if !ok {
			return fmt.Errorf("config: unknown operation tag %q", tag)
		}
		op, err := ctor(raw)
		if err != nil {
			return fmt.Errorf("config: operation %q: %w", tag, err)
		}
		w.op = op
	}
	return nil
}

type pipelineWire []opWire

func (p pipelineWire) toPipeline() operation.Pipeline {
	out := make(operation.Pipeline, 0, len(p))
	for _, w := range p {
		out = append(out, w.op)
	}
	return out
}

type opCtor func(raw json.RawMessage) (operation.Op, error)

var opConstructors map[string]opCtor

func init() {
	opConstructors = map[string]opCtor{
		// Stack family.
		"length": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Min, Max int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackLength{Min: p.Min, Max: p.Max}, nil
		},
		"join": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Sep string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackJoin{Sep: p.Sep}, nil
		},
		"reverse": func(raw json.RawMessage) (operation.Op, error) {
			return operation.StackReverse{}, nil
		},
		"contains": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackContains{S: p.S}, nil
		},
		"push": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackPush{S: p.S}, nil
		},
		"pop": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ N int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackPop{N: p.N}, nil
		},
		"dup": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				I    *int
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			if p.I == nil {
				return operation.StackDup{}, nil
			}
			return operation.StackDup{I: *p.I, HasI: true}, nil
		},
		"xchg": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackXchg{S: p.S}, nil
		},
		"take": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Head, Tail int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackTake{Head: p.Head, Tail: p.Tail}, nil
		},
		"drop": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Head, Tail int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackDrop{Head: p.Head, Tail: p.Tail}, nil
		},
		"swap": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ From, To int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackSwap{From: p.From, To: p.To}, nil
		},
		"indexes": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ I []int }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackIndexes{I: p.I}, nil
		},
		"flat_map": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackFlatMap{Ops: p.Ops.toPipeline()}, nil
		},
		"select": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackSelect{Ops: p.Ops.toPipeline()}, nil
		},
		"values": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Level, ID string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StackValues{Level: p.Level, ID: p.ID}, nil
		},

		// String family.
		"strlen": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Min, Max int
				Mode     string
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			mode := operation.LengthUTF8
			if p.Mode == string(operation.LengthBytes) {
				mode = operation.LengthBytes
			}
			return operation.StringLength{Min: p.Min, Max: p.Max, Mode: mode}, nil
		},
		"strrev": func(raw json.RawMessage) (operation.Op, error) {
			return operation.StringReverse{}, nil
		},
		"split": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Sep string
				Max int
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringSplit{Sep: p.Sep, Max: p.Max}, nil
		},
		"rsplit": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Sep string
				Max int
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringRSplit{Sep: p.Sep, Max: p.Max}, nil
		},
		"replace": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Pattern, With string
				Max           int
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringReplace{Pattern: p.Pattern, With: p.With, Max: p.Max}, nil
		},
		"prefix": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringPrefix{S: p.S}, nil
		},
		"suffix": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringSuffix{S: p.S}, nil
		},
		"substr": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ S string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringSubString{S: p.S}, nil
		},
		"glob": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Patterns []string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.StringGlob{Patterns: p.Patterns}, nil
		},

		// Decode family.
		"base64_standard": func(raw json.RawMessage) (operation.Op, error) {
			return operation.DecodeBase64Standard{}, nil
		},
		"base64_urlsafe": func(raw json.RawMessage) (operation.Op, error) {
			return operation.DecodeBase64URLSafe{}, nil
		},

		// Format family.
		"plain": func(raw json.RawMessage) (operation.Op, error) {
			return operation.FormatPlain{}, nil
		},
		"joined": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Sep     string
				Max     int
				Indexes []int
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.FormatJoined{Sep: p.Sep, Max: p.Max, Indexes: p.Indexes}, nil
		},
		"json": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Path, Keys []string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.FormatJson{Path: p.Path, Keys: p.Keys}, nil
		},
		"protobuf": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Path, Keys []string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.FormatProtoBuf{Path: p.Path, Keys: p.Keys}, nil
		},

		// Check family.
		"any": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckAny{Alternatives: toPipelines(p.Ops)}, nil
		},
		"one_of": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckOneOf{Alternatives: toPipelines(p.Ops)}, nil
		},
		"all": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckAll{Ops: toPipelines(p.Ops)}, nil
		},
		"none": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckNone{Ops: toPipelines(p.Ops)}, nil
		},
		"assert": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckAssert{Ops: p.Ops.toPipeline()}, nil
		},
		"refute": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.CheckRefute{Ops: p.Ops.toPipeline()}, nil
		},
		"ok": func(raw json.RawMessage) (operation.Op, error) {
			return operation.CheckOk{}, nil
		},
		"fail": func(raw json.RawMessage) (operation.Op, error) {
			return operation.CheckFail{}, nil
		},

		// Control family.
		"test": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				If, Then, Else pipelineWire
				HasElse        bool `json:"has_else"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlTest{
				Cond:    p.If.toPipeline(),
				Then:    p.Then.toPipeline(),
				Else:    p.Else.toPipeline(),
				HasElse: p.HasElse || len(p.Else) > 0,
			}, nil
		},
		"or": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlOr{Branches: toPipelines(p.Ops)}, nil
		},
		"and": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Ops    []pipelineWire
				Result string
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlAnd{Branches: toPipelines(p.Ops), Result: parseResult(p.Result)}, nil
		},
		"xor": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Ops []pipelineWire }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlXor{Branches: toPipelines(p.Ops)}, nil
		},
		"cloned": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Ops    pipelineWire
				Result string
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlCloned{Ops: p.Ops.toPipeline(), Result: parseResult(p.Result)}, nil
		},
		"partial": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Ops    pipelineWire
				Max    *int
				Result string
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			op := operation.ControlPartial{
				Ops:    p.Ops.toPipeline(),
				Result: parseResult(p.Result),
			}
			if p.Max != nil {
				op.HasMax = true
				op.Max = *p.Max
			}
			return op, nil
		},
		"top": func(raw json.RawMessage) (operation.Op, error) {
			var p struct {
				Ops    pipelineWire
				Result string
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlTop{Ops: p.Ops.toPipeline(), Result: parseResult(p.Result)}, nil
		},
		"log": func(raw json.RawMessage) (operation.Op, error) {
			var p struct{ Level, Msg string }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return operation.ControlLog{Level: p.Level, Msg: p.Msg}, nil
		},
	}
}

func toPipelines(ws []pipelineWire) []operation.Pipeline {
	out := make([]operation.Pipeline, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toPipeline())
	}
	return out
}

func parseResult(s string) operation.Result {
	if s == "prepend" {
		return operation.ResultPrepend
	}
	return operation.ResultAppend
}

// sourceWire is the wire counterpart of source.Source: a single-key
// object tagged "header", "query_string", or "filter".
type sourceWire struct {
	src source.Source
}

func (w *sourceWire) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("config: source: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("config: source must be a single-key object naming its variant, got %d keys", len(tagged))
	}
	for tag, raw := range tagged {
		var p struct {
			Keys []string
			Path []string
			Ops  pipelineWire
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("config: source %q: %w", tag, err)
		}
		switch tag {
		case "header":
			w.src = source.Header{Keys: p.Keys, Ops: p.Ops.toPipeline()}
		case "query_string":
			w.src = source.QueryString{Keys: p.Keys, Ops: p.Ops.toPipeline()}
		case "filter":
			w.src = source.Filter{Path: p.Path, Keys: p.Keys, Ops: p.Ops.toPipeline()}
		default:
			return fmt.Errorf("config: unknown source tag %q", tag)
		}
	}
	return nil
}

type sourceListWire []sourceWire

func (s sourceListWire) toSources() []source.Source {
	out := make([]source.Source, 0, len(s))
	for _, w := range s {
		out = append(out, w.src)
	}
	return out
}
