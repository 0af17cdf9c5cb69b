package command

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// CreateScheme builds a new scheme with the given attributes and
// registers it at location (empty means the default location).
func CreateScheme(c Context, name, location string, specs ...scheme.AttributeSpec) *Op[*scheme.Scheme] {
	return newOp(c, "create scheme", "scheme "+name, true, func(ctx context.Context) (*scheme.Scheme, memento, error) {
		s, err := scheme.New(name)
		if err != nil {
			return nil, nil, err
		}
		for _, spec := range specs {
			if _, err := s.AddAttribute(ctx, c.Env, spec); err != nil {
				return nil, nil, err
			}
		}
		if err := c.Registry.LoadScheme(ctx, s, location, false); err != nil {
			return nil, nil, err
		}
		loc, _ := c.Registry.Location(s.Name())
		return s, &schemeCreated{s: s, location: loc}, nil
	})
}

// DeleteScheme unloads the scheme called name. The registry deletes it
// from the store on the next Save. Undo loads it back at the location it
// was recorded under.
func DeleteScheme(c Context, name string) *Op[*scheme.Scheme] {
	return newOp(c, "delete scheme", "scheme "+name, true, func(ctx context.Context) (*scheme.Scheme, memento, error) {
		s, loc, err := c.Registry.UnloadScheme(name)
		if err != nil {
			return nil, nil, err
		}
		return s, &schemeDeleted{s: s, location: loc}, nil
	})
}

// LoadScheme registers an existing scheme, typically one just read from
// storage. It cannot be undone.
func LoadScheme(c Context, s *scheme.Scheme, location string, overwrite bool) *Op[*scheme.Scheme] {
	mustScheme(s)
	return newOp(c, "load scheme", subject(s), false, func(ctx context.Context) (*scheme.Scheme, memento, error) {
		if err := c.Registry.LoadScheme(ctx, s, location, overwrite); err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	})
}

// ImportEntries appends rows to s. Columns s does not have yet are added
// first, each typed by inference over that column's values. Every row is
// converted and validated; if any row fails, everything the import did
// is rolled back. columns fixes the order new attributes are added in;
// when nil the sorted union of row keys is used. The result is the
// number of entries added.
func ImportEntries(c Context, s *scheme.Scheme, columns []string, rows []map[string]any, progress types.Progress) *Op[int] {
	mustScheme(s)
	if progress == nil {
		progress = types.NopProgress{}
	}
	return newOp(c, "import entries", subject(s), true, func(ctx context.Context) (int, memento, error) {
		m := &entriesImported{s: s}
		if columns == nil {
			columns = columnUnion(rows)
		}
		for _, col := range columns {
			if s.AttributeIndex(col) >= 0 {
				continue
			}
			samples := make([]any, len(rows))
			for i, row := range rows {
				samples[i] = row[col]
			}
			t, err := datatype.Infer(ctx, c.Env, samples)
			if err != nil {
				return 0, nil, rollback(m, fmt.Errorf("column %s: %w", col, err))
			}
			a, err := s.AddAttribute(ctx, c.Env, scheme.AttributeSpec{Name: col, Type: t})
			if err != nil {
				return 0, nil, rollback(m, err)
			}
			m.attrs = append(m.attrs, a)
		}

		progress.Start("import "+s.Name(), len(rows))
		defer progress.Done()
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return 0, nil, rollback(m, err)
			}
			e := scheme.NewEntry(row)
			if err := s.AddEntry(ctx, c.Env, e, true); err != nil {
				return 0, nil, rollback(m, fmt.Errorf("row %d: %w", i+1, err))
			}
			m.entries = append(m.entries, e)
			m.indexes = append(m.indexes, s.IndexOf(e))
			progress.Advance(1)
		}
		return len(m.entries), m, nil
	})
}

func rollback(m *entriesImported, cause error) error {
	if err := m.undo(); err != nil {
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	return cause
}

func columnUnion(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
