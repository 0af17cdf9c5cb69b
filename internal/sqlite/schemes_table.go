package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// SaveScheme replaces the stored copy of sc in one transaction.
func (s *Store) SaveScheme(ctx context.Context, sc *scheme.Scheme) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	var id string
	err = tx.QueryRowContext(ctx, "SELECT scheme_id FROM schemes WHERE name = ?", sc.Name()).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = generateUUID()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO schemes (scheme_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
			id, sc.Name(), now, now,
		)
	case err == nil:
		_, err = tx.ExecContext(ctx, "UPDATE schemes SET updated_at = ? WHERE scheme_id = ?", now, id)
	}
	if err != nil {
		return fmt.Errorf("persisting scheme %s: %w", sc.Name(), err)
	}

	for _, table := range []string{"attributes", "entries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE scheme_id = ?", id); err != nil {
			return fmt.Errorf("clearing %s of %s: %w", table, sc.Name(), err)
		}
	}

	for i, a := range sc.Attributes() {
		rec := attributeRecord(a)
		spec, err := json.Marshal(rec.Type)
		if err != nil {
			return fmt.Errorf("encoding type of %s.%s: %w", sc.Name(), a.Name(), err)
		}
		def, err := json.Marshal(rec.Default)
		if err != nil {
			return fmt.Errorf("encoding default of %s.%s: %w", sc.Name(), a.Name(), err)
		}
		meta, err := json.Marshal(rec.Meta)
		if err != nil {
			return fmt.Errorf("encoding meta of %s.%s: %w", sc.Name(), a.Name(), err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO attributes (scheme_id, ordinal, name, type_spec, default_value, identifier, meta) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, i, a.Name(), string(spec), string(def), rec.Identifier, string(meta),
		); err != nil {
			return fmt.Errorf("persisting attribute %s.%s: %w", sc.Name(), a.Name(), err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO entries (scheme_id, ordinal, entry_values) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range sc.Entries() {
		values, err := json.Marshal(entryRecord(sc, e))
		if err != nil {
			return fmt.Errorf("encoding %s entry %d: %w", sc.Name(), i, err)
		}
		if _, err := stmt.ExecContext(ctx, id, i, string(values)); err != nil {
			return fmt.Errorf("persisting %s entry %d: %w", sc.Name(), i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", sc.Name(), err)
	}
	s.logger.Debug("scheme saved",
		zap.String("scheme", sc.Name()),
		zap.Int("attributes", len(sc.Attributes())),
		zap.Int("entries", sc.Len()),
	)
	return nil
}

// LoadScheme reads the stored scheme called name. Values are converted
// to their attribute types; Reference values that cannot be resolved
// yet keep their decoded form until the registry resolves them.
func (s *Store) LoadScheme(ctx context.Context, name string) (*scheme.Scheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var id string
	err = db.QueryRowContext(ctx, "SELECT scheme_id FROM schemes WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrSchemeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting scheme %s: %w", name, err)
	}

	sc, err := scheme.New(name)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateAttributes(ctx, db, id, sc); err != nil {
		return nil, err
	}
	if err := s.hydrateEntries(ctx, db, id, sc); err != nil {
		return nil, err
	}
	sc.MarkClean()
	return sc, nil
}

func (s *Store) hydrateAttributes(ctx context.Context, db *sql.DB, id string, sc *scheme.Scheme) error {
	rows, err := db.QueryContext(ctx,
		"SELECT name, type_spec, default_value, identifier, meta FROM attributes WHERE scheme_id = ? ORDER BY ordinal",
		id,
	)
	if err != nil {
		return fmt.Errorf("querying attributes of %s: %w", sc.Name(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, spec string
			def, meta  sql.NullString
			identifier bool
		)
		if err := rows.Scan(&name, &spec, &def, &identifier, &meta); err != nil {
			return fmt.Errorf("scanning attribute of %s: %w", sc.Name(), err)
		}
		var ts datatype.Spec
		if err := json.Unmarshal([]byte(spec), &ts); err != nil {
			return fmt.Errorf("decoding type of %s.%s: %w", sc.Name(), name, err)
		}
		t, err := datatype.FromSpec(ts)
		if err != nil {
			return fmt.Errorf("type of %s.%s: %w", sc.Name(), name, err)
		}
		attrSpec := scheme.AttributeSpec{Name: name, Type: t, Identifier: identifier}
		if def.Valid {
			raw, err := decodeJSON([]byte(def.String))
			if err != nil {
				return fmt.Errorf("decoding default of %s.%s: %w", sc.Name(), name, err)
			}
			attrSpec.Default = decodeValue(ctx, t, raw)
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &attrSpec.Meta); err != nil {
				return fmt.Errorf("decoding meta of %s.%s: %w", sc.Name(), name, err)
			}
		}
		if _, err := sc.AddAttribute(ctx, datatype.Env{}, attrSpec); err != nil {
			// A default that no longer validates falls back to the type default.
			attrSpec.Default = nil
			if _, err2 := sc.AddAttribute(ctx, datatype.Env{}, attrSpec); err2 != nil {
				return fmt.Errorf("restoring attribute %s.%s: %w", sc.Name(), name, errors.Join(err, err2))
			}
			s.logger.Warn("stored default discarded", zap.String("attribute", sc.Name()+"."+name), zap.Error(err))
		}
	}
	return rows.Err()
}

func (s *Store) hydrateEntries(ctx context.Context, db *sql.DB, id string, sc *scheme.Scheme) error {
	rows, err := db.QueryContext(ctx,
		"SELECT entry_values FROM entries WHERE scheme_id = ? ORDER BY ordinal",
		id,
	)
	if err != nil {
		return fmt.Errorf("querying entries of %s: %w", sc.Name(), err)
	}
	defer rows.Close()

	attrs := sc.Attributes()
	for i := 0; rows.Next(); i++ {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scanning %s entry %d: %w", sc.Name(), i, err)
		}
		decoded, err := decodeJSON([]byte(raw))
		if err != nil {
			return fmt.Errorf("decoding %s entry %d: %w", sc.Name(), i, err)
		}
		obj, _ := decoded.(map[string]any)
		values := make(map[string]any, len(attrs))
		for _, a := range attrs {
			// Columns from a newer or older generation are ignored;
			// missing ones take the default.
			if v, ok := obj[a.Name()]; ok {
				values[a.Name()] = decodeValue(ctx, a.Type(), v)
			}
		}
		if err := sc.AddEntry(ctx, datatype.Env{}, scheme.NewEntry(values), false); err != nil {
			return fmt.Errorf("restoring %s entry %d: %w", sc.Name(), i, err)
		}
	}
	return rows.Err()
}

// DeleteScheme removes the stored scheme called name.
func (s *Store) DeleteScheme(ctx context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, "DELETE FROM schemes WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting scheme %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrSchemeNotFound, name)
	}
	return nil
}

// ListSchemes returns the stored scheme names, sorted.
func (s *Store) ListSchemes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT name FROM schemes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing schemes: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning scheme name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// decodeJSON decodes data keeping numbers as json.Number so integers
// survive the round trip exactly.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeValue converts a decoded JSON value to t's canonical form. When
// conversion is not possible yet (references to schemes not loaded) the
// decoded value is kept with numbers narrowed to int64 or float64.
func decodeValue(ctx context.Context, t *datatype.DataType, v any) any {
	if c, err := t.Convert(ctx, datatype.Env{}, v); err == nil {
		return c
	}
	return narrowNumbers(v)
}

func narrowNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = narrowNumbers(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = narrowNumbers(item)
		}
		return out
	default:
		return v
	}
}
