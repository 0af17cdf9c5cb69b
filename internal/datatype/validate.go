package datatype

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// ValidationError describes why a value was rejected by a type. It
// matches types.ErrInvalidValue under errors.Is, plus the underlying
// cause when there is one.
type ValidationError struct {
	Type   string
	Value  any
	Index  int // first failing list element, or -1
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: element %d: %s", e.Type, e.Index, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{types.ErrInvalidValue, e.Err}
	}
	return []error{types.ErrInvalidValue}
}

func (t *DataType) invalid(v any, format string, args ...any) *ValidationError {
	return &ValidationError{Type: t.Name(), Value: v, Index: -1, Reason: fmt.Sprintf(format, args...)}
}

// Validate reports whether v is a valid canonical value of t. It returns
// nil on success and a *ValidationError otherwise. Path kinds may consult
// env.FS; Reference consults env.Identifiers.
func (t *DataType) Validate(ctx context.Context, env Env, v any) error {
	switch t.kind {
	case KindText:
		if _, ok := v.(string); !ok {
			return t.invalid(v, "expected text, got %T", v)
		}
	case KindInteger:
		if _, ok := v.(int64); !ok {
			return t.invalid(v, "expected integer, got %T", v)
		}
	case KindFloat:
		f, ok := v.(float64)
		if !ok {
			return t.invalid(v, "expected float, got %T", v)
		}
		if math.IsNaN(f) {
			return t.invalid(v, "NaN is not a value")
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			return t.invalid(v, "expected boolean, got %T", v)
		}
	case KindDateTime:
		if _, ok := v.(time.Time); !ok {
			return t.invalid(v, "expected timestamp, got %T", v)
		}
	case KindGuid:
		if _, ok := v.(uuid.UUID); !ok {
			return t.invalid(v, "expected GUID, got %T", v)
		}
	case KindColor:
		c, ok := v.(colorful.Color)
		if !ok {
			return t.invalid(v, "expected color, got %T", v)
		}
		if !c.IsValid() {
			return t.invalid(v, "color channels out of range")
		}
	case KindFilePath, KindFolder:
		return t.validatePath(ctx, env, v)
	case KindList:
		return t.validateList(ctx, env, v)
	case KindReference:
		return t.validateReference(ctx, env, v)
	case KindExtension:
		return nil
	default:
		return t.invalid(v, "unknown kind")
	}
	return nil
}

func (t *DataType) validateList(ctx context.Context, env Env, v any) error {
	items, ok := v.([]any)
	if !ok {
		return t.invalid(v, "expected list, got %T", v)
	}
	for i, item := range items {
		if err := t.elem.Validate(ctx, env, item); err != nil {
			return &ValidationError{Type: t.Name(), Value: v, Index: i, Reason: err.Error(), Err: err}
		}
	}
	return nil
}

// resolvePath joins a relative path onto the type's or env's base path.
func (t *DataType) resolvePath(env Env, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	base := t.path.BasePath
	if base == "" {
		base = env.BasePath
	}
	if base == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func (t *DataType) validatePath(ctx context.Context, env Env, v any) error {
	p, ok := v.(string)
	if !ok {
		return t.invalid(v, "expected path text, got %T", v)
	}
	if p == "" {
		return nil
	}
	if t.kind == KindFilePath && len(t.path.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(p))
		if !slices.ContainsFunc(t.path.Extensions, func(e string) bool { return strings.ToLower(e) == ext }) {
			return t.invalid(v, "extension %q not one of %v", ext, t.path.Extensions)
		}
	}
	if !t.path.MustExist {
		return nil
	}
	if env.FS == nil {
		ve := t.invalid(v, "no file system available to check existence")
		ve.Err = types.ErrPathNotFound
		return ve
	}

	cctx := ctx
	if env.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, env.Timeout)
		defer cancel()
	}

	resolved := t.resolvePath(env, p)
	var (
		exists bool
		err    error
	)
	if t.kind == KindFolder {
		exists, err = env.FS.DirectoryExists(cctx, resolved)
	} else {
		exists, err = env.FS.FileExists(cctx, resolved)
	}
	if err != nil {
		// A timed-out or failed check never counts as success.
		ve := t.invalid(v, "existence check for %s failed: %v", resolved, err)
		ve.Err = err
		return ve
	}
	if !exists {
		ve := t.invalid(v, "%s does not exist", resolved)
		ve.Err = types.ErrPathNotFound
		return ve
	}
	return nil
}

func (t *DataType) validateReference(ctx context.Context, env Env, v any) error {
	if isBlank(v) {
		if t.ref.AllowEmpty {
			return nil
		}
		return t.invalid(v, "reference must not be empty")
	}
	if env.Identifiers == nil {
		ve := t.invalid(v, "no identifier source to resolve %s.%s", t.ref.Scheme, t.ref.Attribute)
		ve.Err = types.ErrReferenceTarget
		return ve
	}
	values, target, err := env.Identifiers.IdentifierValues(t.ref.Scheme, t.ref.Attribute)
	if err != nil {
		ve := t.invalid(v, "resolving %s.%s: %v", t.ref.Scheme, t.ref.Attribute, err)
		ve.Err = fmt.Errorf("%w: %w", types.ErrReferenceTarget, err)
		return ve
	}
	want := v
	if target != nil {
		if c, err := target.Convert(ctx, env, v); err == nil {
			want = c
		}
	}
	for _, candidate := range values {
		// Candidates from a partially loaded scheme may not have reached
		// their canonical type yet.
		if target != nil {
			if c, err := target.Convert(ctx, env, candidate); err == nil {
				candidate = c
			}
		}
		if ValuesEqual(candidate, want) {
			return nil
		}
	}
	return t.invalid(v, "%v is not an identifier value of %s.%s", stringify(v), t.ref.Scheme, t.ref.Attribute)
}
