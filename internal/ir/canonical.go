package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fold returns the canonical form used for case-insensitive identifier
// matching: NFC normalization followed by lowercasing. Parameter names are
// compared folded; action ids and memory keys are not.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// MarshalOrdered renders v as JSON with object keys in sorted order and
// HTML escaping disabled. Golden fixtures compare this output byte for
// byte, so map iteration order must not leak through.
func MarshalOrdered(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalOrdered(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalOrdered(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalScalar(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := marshalOrdered(buf, x[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalOrdered(buf, elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Enum:
		return marshalScalar(buf, string(x))
	case Vector:
		return marshalScalar(buf, x.String())
	case Opaque:
		return marshalScalar(buf, x.String())
	case Value:
		return marshalOrdered(buf, x.Unwrap())
	default:
		return marshalScalar(buf, v)
	}
}

func marshalScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// json.Encoder appends a newline after every value.
	b := buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		buf.Truncate(len(b) - 1)
	}
	return nil
}
