package operation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3scale-labs/authrep-filter/internal/stack"
)

func exec(t *testing.T, p Pipeline, in stack.Stack) stack.Stack {
	t.Helper()
	out, err := p.Exec(&Context{}, in)
	require.NoError(t, err)
	return out
}

func TestStackReverseIsSelfInverse(t *testing.T) {
	in := stack.Stack{"a", "b", "c"}
	once := exec(t, Pipeline{StackReverse{}}, in.Clone())
	twice := exec(t, Pipeline{StackReverse{}, StackReverse{}}, in.Clone())
	assert.Equal(t, stack.Stack{"c", "b", "a"}, once)
	assert.Equal(t, in, twice)
}

func TestStringSplitJoinRoundTrip(t *testing.T) {
	in := stack.Stack{"a:b:c"}
	split := exec(t, Pipeline{StringSplit{Sep: ":"}}, in)
	assert.Equal(t, stack.Stack{"a", "b", "c"}, split)

	joined := exec(t, Pipeline{StackJoin{Sep: ":"}}, split)
	assert.Equal(t, stack.Stack{"a:b:c"}, joined)
}

func TestPipelineEmptyStackIsRejected(t *testing.T) {
	_, err := Pipeline{StackPop{N: 1}}.Exec(&Context{}, stack.Stack{"only"})
	assert.ErrorIs(t, err, ErrNoOutputValue)
}

func TestDecodeBase64RoundTrip(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("hello world"))
	out := exec(t, Pipeline{DecodeBase64Standard{}}, stack.Stack{encoded})
	assert.Equal(t, stack.Stack{"hello world"}, out)
}

func TestDecodeBase64RejectsInvalidUTF8(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})
	_, err := Pipeline{DecodeBase64Standard{}}.Exec(&Context{}, stack.Stack{encoded})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUTF8)
}

// TestBasicAuthScenario mirrors an HTTP Basic-auth header pipeline: the
// "Basic <base64(user_key:)>" header value is stripped of its scheme
// prefix, base64-decoded, and split on the user_key/password separator
// to recover the bare user_key.
func TestBasicAuthScenario(t *testing.T) {
	userKey := "a1b2c3d4"
	encoded := base64.StdEncoding.EncodeToString([]byte(userKey + ":"))
	header := "Basic " + encoded

	p := Pipeline{
		StringPrefix{S: "Basic "},
		StringReplace{Pattern: "Basic ", With: "", Max: 1},
		DecodeBase64Standard{},
		StringSplit{Sep: ":", Max: 2},
		StackIndexes{I: []int{0}},
	}
	out := exec(t, p, stack.Stack{header})
	assert.Equal(t, stack.Stack{userKey}, out)
}

func TestFormatJsonWalksPathAndMatchesKeys(t *testing.T) {
	payload := `{"auth":{"user_key":"abc123","app_id":"ignored"}}`
	p := Pipeline{
		FormatJson{Path: []string{"auth"}, Keys: []string{"user_key"}},
	}
	out := exec(t, p, stack.Stack{payload})
	assert.Equal(t, stack.Stack{"abc123"}, out)
}

func TestControlClonedPreservesOriginalStack(t *testing.T) {
	in := stack.Stack{"keep-me"}
	p := Pipeline{
		ControlCloned{
			Ops:    Pipeline{StackPush{S: "extra"}},
			Result: ResultAppend,
		},
	}
	out := exec(t, p, in)
	assert.Equal(t, stack.Stack{"keep-me", "extra"}, out)
}

func TestControlPartialSplitsLastElementByDefault(t *testing.T) {
	p := ControlPartial{
		Ops:    Pipeline{StackPush{S: "extra"}},
		Result: ResultAppend,
	}
	out, err := Pipeline{p}.Exec(&Context{}, stack.Stack{"keep-1", "keep-2", "split-me"})
	require.NoError(t, err)
	assert.Equal(t, stack.Stack{"keep-1", "keep-2", "split-me", "extra"}, out)
}

func TestControlPartialNonPositiveMaxSplitsNothing(t *testing.T) {
	p := ControlPartial{
		Ops:    Pipeline{StackPush{S: "extra"}},
		HasMax: true,
		Max:    0,
		Result: ResultAppend,
	}
	out, err := Pipeline{p}.Exec(&Context{}, stack.Stack{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, stack.Stack{"a", "b", "extra"}, out)
}

func TestControlPartialFailsWhenOpsFails(t *testing.T) {
	p := ControlPartial{
		Ops: Pipeline{StringPrefix{S: "z"}},
	}
	_, err := Pipeline{p}.Exec(&Context{}, stack.Stack{"abc"})
	require.Error(t, err)
}

func TestControlTopScopesToOneElement(t *testing.T) {
	p := ControlTop{
		Ops:    Pipeline{StackPush{S: "extra"}},
		Result: ResultAppend,
	}
	out, err := Pipeline{p}.Exec(&Context{}, stack.Stack{"keep-me", "top"})
	require.NoError(t, err)
	assert.Equal(t, stack.Stack{"keep-me", "top", "extra"}, out)
}

func TestControlTopFailsOnEmptyStack(t *testing.T) {
	p := ControlTop{Ops: Pipeline{StackPush{S: "extra"}}}
	_, err := Pipeline{p}.Exec(&Context{}, stack.Stack{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyStack)
}

func TestControlXorRequiresExactlyOne(t *testing.T) {
	p := ControlXor{
		Branches: []Pipeline{
			{StringPrefix{S: "a"}},
			{StringPrefix{S: "a"}},
		},
	}
	_, err := Pipeline{p}.Exec(&Context{}, stack.Stack{"abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrXorAmbiguous)
}

func TestCheckAssertAndRefute(t *testing.T) {
	in := stack.Stack{"abc"}
	out := exec(t, Pipeline{CheckAssert{Ops: Pipeline{StringPrefix{S: "a"}}}}, in.Clone())
	assert.Equal(t, in, out)

	out = exec(t, Pipeline{CheckRefute{Ops: Pipeline{StringPrefix{S: "z"}}}}, in.Clone())
	assert.Equal(t, in, out)

	_, err := Pipeline{CheckAssert{Ops: Pipeline{StringPrefix{S: "z"}}}}.Exec(&Context{}, in.Clone())
	assert.ErrorIs(t, err, ErrAssertionFailed)
}

func TestStringGlobMatchesAnyPattern(t *testing.T) {
	p := Pipeline{StringGlob{Patterns: []string{"foo-*", "bar-*"}}}
	out := exec(t, p, stack.Stack{"bar-123"})
	assert.Equal(t, stack.Stack{"bar-123"}, out)

	_, err := p.Exec(&Context{}, stack.Stack{"baz-123"})
	assert.ErrorIs(t, err, ErrGlobNoMatch)
}
