package datatype

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cast"
)

// CloneValue deep-copies the mutable containers a value may hold (lists
// and maps). Scalars are returned as is.
func CloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// ValuesEqual reports structural equality of two canonical values.
// Timestamps compare by instant, colors by hex form and lists element by
// element.
func ValuesEqual(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !ValuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		return ok && maps.EqualFunc(x, y, ValuesEqual)
	case colorful.Color:
		// Colors are edited and stored at 8 bits per channel.
		y, ok := b.(colorful.Color)
		return ok && x.Hex() == y.Hex()
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Compare orders two canonical values of the same kind. nil sorts first;
// values of different Go types fall back to comparing their text forms.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:])
		}
	case colorful.Color:
		if y, ok := b.(colorful.Color); ok {
			return strings.Compare(x.Hex(), y.Hex())
		}
	case []any:
		if y, ok := b.([]any); ok {
			for i := 0; i < len(x) && i < len(y); i++ {
				if c := Compare(x[i], y[i]); c != 0 {
					return c
				}
			}
			return cmp.Compare(len(x), len(y))
		}
	}
	return strings.Compare(stringify(a), stringify(b))
}

// Encode returns a JSON-friendly form of a canonical value: timestamps as
// RFC 3339, GUIDs as strings, colors as hex.
func Encode(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return x.String()
	case colorful.Color:
		return x.Hex()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Encode(e)
		}
		return out
	default:
		return v
	}
}

// Format renders v as display text.
func Format(v any) string { return stringify(v) }

// stringify renders any value as text, preferring the canonical text form
// of catalog types over Go's default formatting.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return x.String()
	case colorful.Color:
		return x.Hex()
	case json.Number:
		return x.String()
	case []any:
		data, err := json.Marshal(Encode(x))
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// isBlank reports whether v is nil or whitespace-only text.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
