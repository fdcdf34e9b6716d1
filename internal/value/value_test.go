package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func decodeJSON(t *testing.T, doc string) Value {
	t.Helper()
	var raw any
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	return NewJSON(raw)
}

func TestMatchOneStructFirstKeyWins(t *testing.T) {
	v := decodeJSON(t, `{"azp":"api-client","aud":"x"}`)
	got, ok := MatchOne(v, []string{"azp", "aud"})
	require.True(t, ok)
	s, ok := got.AsStr()
	require.True(t, ok)
	assert.Equal(t, "api-client", s)
}

func TestMatchOneStructSingleFieldFallback(t *testing.T) {
	v := decodeJSON(t, `{"only":"value"}`)
	got, ok := MatchOne(v, []string{"0"})
	require.True(t, ok)
	s, _ := got.AsStr()
	assert.Equal(t, "value", s)
}

func TestMatchOneListIndex(t *testing.T) {
	v := decodeJSON(t, `["a","b","c"]`)
	got, ok := MatchOne(v, []string{"not-a-number", "1"})
	require.True(t, ok)
	s, _ := got.AsStr()
	assert.Equal(t, "b", s)
}

func TestMatchOneScalarEquality(t *testing.T) {
	v := decodeJSON(t, `"aladdin"`)
	_, ok := MatchOne(v, []string{"someone-else"})
	assert.False(t, ok)

	got, ok := MatchOne(v, []string{"aladdin"})
	require.True(t, ok)
	s, _ := got.AsStr()
	assert.Equal(t, "aladdin", s)
}

func TestMatchOneNullNeverMatches(t *testing.T) {
	v := decodeJSON(t, `null`)
	_, ok := MatchOne(v, []string{"0", ""})
	assert.False(t, ok)
}

func TestLookupEmptySegmentIsNoop(t *testing.T) {
	v := decodeJSON(t, `{"a":{"b":"c"}}`)
	got, err := Lookup(v, []string{"", "a", "", "b"})
	require.NoError(t, err)
	s, _ := got.AsStr()
	assert.Equal(t, "c", s)
}

func TestLookupReportsFailingSegmentAndParentKind(t *testing.T) {
	v := decodeJSON(t, `{"a":"scalar"}`)
	_, err := Lookup(v, []string{"a", "b"})
	require.Error(t, err)
	var lerr *LookupError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "b", lerr.Segment)
	assert.Equal(t, KindString, lerr.Kind)
}

func TestProtoStructLookup(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{
		"jwt_authn": map[string]any{
			"some-issuer": map[string]any{
				"azp": "api-client",
			},
		},
	})
	require.NoError(t, err)
	v := NewProtoStruct(s)

	got, err := Lookup(v, []string{"jwt_authn", "some-issuer"})
	require.NoError(t, err)
	final, ok := MatchOne(got, []string{"azp", "aud"})
	require.True(t, ok)
	str, _ := final.AsStr()
	assert.Equal(t, "api-client", str)
}
