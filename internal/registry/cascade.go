package registry

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// UpdateIdentifierValue changes the identifier value oldValue of
// schemeName.attribute to newValue and rewrites every Reference value
// that pointed at it, including elements of List<Reference> values.
// Returns the number of references rewritten.
//
// The identifier write happens first and fails cleanly on a collision.
// The reference walk that follows is best effort: a reference that
// cannot be rewritten is reported and the walk continues, so the update
// is not atomic across schemes. All walk errors are joined.
func (r *Registry) UpdateIdentifierValue(ctx context.Context, env datatype.Env, schemeName, attribute string, oldValue, newValue any) (int, error) {
	s, err := r.GetScheme(schemeName)
	if err != nil {
		return 0, err
	}
	a, err := s.Attribute(attribute)
	if err != nil {
		return 0, err
	}
	if !a.IsIdentifier() {
		return 0, fmt.Errorf("%w: %s.%s", types.ErrNotIdentifier, schemeName, attribute)
	}
	if converted, err := a.Type().Convert(ctx, env, oldValue); err == nil {
		oldValue = converted
	}
	e, err := s.FindEntry(attribute, oldValue)
	if err != nil {
		return 0, err
	}
	previous, err := s.SetValue(ctx, env, e, attribute, newValue, true)
	if err != nil {
		return 0, err
	}
	current := e.Value(attribute)

	count := 0
	var errs []error
	for _, o := range r.Schemes() {
		for _, ra := range o.Attributes() {
			target, ok := ra.Type().Referent()
			if !ok || target.Scheme != schemeName || target.Attribute != attribute {
				continue
			}
			for _, oe := range o.Entries() {
				if err := ctx.Err(); err != nil {
					return count, errors.Join(append(errs, err)...)
				}
				next, n := rewriteReferences(oe.Value(ra.Name()), previous, current)
				if n == 0 {
					continue
				}
				if _, err := o.SetValue(ctx, env, oe, ra.Name(), next, true); err != nil {
					errs = append(errs, fmt.Errorf("%s.%s: %w", o.Name(), ra.Name(), err))
					continue
				}
				count += n
			}
		}
	}
	r.logger.Debug("identifier updated",
		zap.String("scheme", schemeName),
		zap.String("attribute", attribute),
		zap.Any("old", datatype.Encode(previous)),
		zap.Any("new", datatype.Encode(current)),
		zap.Int("references", count),
	)
	if len(errs) > 0 {
		r.logger.Warn("identifier cascade incomplete",
			zap.String("scheme", schemeName),
			zap.Int("failures", len(errs)),
		)
	}
	return count, errors.Join(errs...)
}

// rewriteReferences replaces every occurrence of from in v with to,
// descending into lists. The input list is never modified. n counts the
// replacements.
func rewriteReferences(v, from, to any) (out any, n int) {
	items, ok := v.([]any)
	if !ok {
		if datatype.ValuesEqual(v, from) {
			return datatype.CloneValue(to), 1
		}
		return v, 0
	}
	next := make([]any, len(items))
	for i, item := range items {
		var k int
		next[i], k = rewriteReferences(item, from, to)
		n += k
	}
	if n == 0 {
		return v, 0
	}
	return next, n
}
