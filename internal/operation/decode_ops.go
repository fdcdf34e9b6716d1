package operation

import (
	"encoding/base64"
	"unicode/utf8"

	"github.com/3scale-labs/authrep-filter/internal/stack"
)

// DecodeBase64Standard decodes the top element as standard base64 and
// replaces it with the decoded text. The result must be valid UTF-8.
type DecodeBase64Standard struct{}

func (o DecodeBase64Standard) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	return decodeBase64(s, base64.StdEncoding)
}

// DecodeBase64URLSafe decodes the top element as URL-safe base64.
type DecodeBase64URLSafe struct{}

func (o DecodeBase64URLSafe) Exec(_ *Context, s stack.Stack) (stack.Stack, error) {
	return decodeBase64(s, base64.URLEncoding)
}

func decodeBase64(s stack.Stack, enc *base64.Encoding) (stack.Stack, error) {
	rest, top, ok := popTop(s)
	if !ok {
		return nil, wrapErr(FamilyDecode, "base64", ErrEmptyStack)
	}
	raw, err := enc.DecodeString(top)
	if err != nil {
		// Padding is a common source of interop friction; accept the
		// input with or without it before giving up.
		if raw, err = enc.WithPadding(base64.NoPadding).DecodeString(top); err != nil {
			return nil, wrapErr(FamilyDecode, "base64", ErrBase64)
		}
	}
	if !utf8.Valid(raw) {
		return nil, wrapErr(FamilyDecode, "base64", ErrUTF8)
	}
	return append(rest, string(raw)), nil
}
