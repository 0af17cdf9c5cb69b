package datatype

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

func (t *DataType) convertErr(v any, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %v (%T) to %s", types.ErrConversionFailed, v, v, t.Name())
	}
	return fmt.Errorf("%w: %v (%T) to %s: %w", types.ErrConversionFailed, v, v, t.Name(), err)
}

// Convert coerces v into t's canonical runtime representation. It does
// not validate the result; callers that need both run Convert then
// Validate.
func (t *DataType) Convert(ctx context.Context, env Env, v any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch t.kind {
	case KindText:
		return stringify(v), nil
	case KindInteger:
		return t.toInteger(v)
	case KindFloat:
		switch x := v.(type) {
		case string:
			v = strings.TrimSpace(x)
		case json.Number:
			v = x.String()
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, t.convertErr(v, err)
		}
		return f, nil
	case KindBoolean:
		return t.toBoolean(v)
	case KindDateTime:
		return t.toDateTime(v)
	case KindGuid:
		return t.toGuid(v)
	case KindFilePath, KindFolder:
		return strings.TrimSpace(stringify(v)), nil
	case KindColor:
		return t.toColor(v)
	case KindList:
		return t.toList(ctx, env, v)
	case KindReference:
		return t.toReference(ctx, env, v)
	case KindExtension:
		return v, nil
	default:
		return nil, t.convertErr(v, types.ErrUnknownType)
	}
}

func (t *DataType) toInteger(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return t.integerFromText(strings.TrimSpace(x))
	case json.Number:
		return t.integerFromText(x.String())
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, t.convertErr(v, fmt.Errorf("%v has a fractional part", x))
		}
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return nil, t.convertErr(v, fmt.Errorf("%v has a fractional part", x))
		}
	case time.Time:
		return nil, t.convertErr(v, nil)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return n, nil
}

// integerFromText parses base-10 text, accepting integral decimals such
// as "3.0" but never octal or hex prefixes.
func (t *DataType) integerFromText(s string) (any, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, t.convertErr(s, err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, t.convertErr(s, fmt.Errorf("%s is not a whole number", s))
	}
	return int64(f), nil
}

func (t *DataType) toBoolean(v any) (any, error) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		v = strings.TrimSpace(s)
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return b, nil
}

func (t *DataType) toDateTime(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		v = strings.TrimSpace(x)
	}
	ts, err := cast.ToTimeE(v)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return ts.UTC(), nil
}

func (t *DataType) toGuid(v any) (any, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		if len(x) == 16 {
			id, err := uuid.FromBytes(x)
			if err != nil {
				return nil, t.convertErr(v, err)
			}
			return id, nil
		}
		v = string(x)
	}
	s := strings.TrimSpace(stringify(v))
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return id, nil
}

func (t *DataType) toColor(v any) (any, error) {
	switch x := v.(type) {
	case colorful.Color:
		return x, nil
	case color.Color:
		c, ok := colorful.MakeColor(x)
		if !ok {
			return nil, t.convertErr(v, fmt.Errorf("fully transparent color"))
		}
		return c, nil
	case map[string]any:
		// The shape encoding/json produces for a colorful.Color.
		r, errR := cast.ToFloat64E(x["R"])
		g, errG := cast.ToFloat64E(x["G"])
		b, errB := cast.ToFloat64E(x["B"])
		if errR != nil || errG != nil || errB != nil {
			return nil, t.convertErr(v, nil)
		}
		return colorful.Color{R: r, G: g, B: b}, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, t.convertErr(v, nil)
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return nil, t.convertErr(v, fmt.Errorf("color text must start with '#'"))
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return c, nil
}

func (t *DataType) toList(ctx context.Context, env Env, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return t.convertElems(ctx, env, x)
	case string:
		s := strings.TrimSpace(x)
		if strings.HasPrefix(s, "[") {
			dec := json.NewDecoder(strings.NewReader(s))
			dec.UseNumber()
			var items []any
			if err := dec.Decode(&items); err != nil {
				return nil, t.convertErr(v, err)
			}
			return t.convertElems(ctx, env, items)
		}
		// A bare string is only a list when the elements are text; any
		// other element type would silently coerce the string.
		if t.elem.kind == KindText {
			return []any{x}, nil
		}
		return nil, t.convertErr(v, types.ErrListFromString)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return t.convertElems(ctx, env, items)
	}

	// Wrap a scalar as a singleton list.
	e, err := t.elem.Convert(ctx, env, v)
	if err != nil {
		return nil, t.convertErr(v, err)
	}
	return []any{e}, nil
}

func (t *DataType) convertElems(ctx context.Context, env Env, items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		c, err := t.elem.Convert(ctx, env, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

func (t *DataType) toReference(ctx context.Context, env Env, v any) (any, error) {
	if isBlank(v) {
		return nil, nil
	}
	if env.Identifiers == nil {
		return nil, t.convertErr(v, types.ErrReferenceTarget)
	}
	_, target, err := env.Identifiers.IdentifierValues(t.ref.Scheme, t.ref.Attribute)
	if err != nil {
		return nil, t.convertErr(v, fmt.Errorf("%w: %w", types.ErrReferenceTarget, err))
	}
	if target == nil {
		return v, nil
	}
	return target.Convert(ctx, env, v)
}

// ConvertBetween converts a value stored under type from into type to.
// Equal types pass the value through unchanged. Values coming from Text or
// an Extension are stringified first, and blank text becomes to's
// default. Everything else is handed to to.Convert directly. A nil from
// is treated as Text.
func ConvertBetween(ctx context.Context, env Env, from, to *DataType, v any) (any, error) {
	if to == nil {
		return nil, types.ErrNilType
	}
	if from != nil && from.Equal(to) {
		return v, nil
	}
	if from == nil || from.kind == KindText || from.kind == KindExtension {
		s := stringify(v)
		if strings.TrimSpace(s) == "" {
			return to.CloneDefault(), nil
		}
		return to.Convert(ctx, env, s)
	}
	return to.Convert(ctx, env, v)
}
