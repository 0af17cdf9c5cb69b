package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

// ErrBadHeader is returned when an export file does not start with a
// scheme header line.
var ErrBadHeader = errors.New("jsonl file has no scheme header")

// readJSONL reads path and returns each non-empty line. Lines that are
// not valid JSON are skipped and counted.
func readJSONL(fs afero.Fs, path string) ([][]byte, int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var (
		lines   [][]byte
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			skipped++
			continue
		}
		lines = append(lines, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, skipped, nil
}

// writeJSONL atomically replaces path with records, one per line,
// through a temp file in the same directory.
func writeJSONL(fs afero.Fs, path string, records []any) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		// Encode terminates each record with a newline.
		if err := enc.Encode(rec); err != nil {
			return fail("writing record", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ExportJSONL writes sc to path: a header line describing the scheme
// followed by one line per entry in scheme order.
func (s *Store) ExportJSONL(ctx context.Context, sc *scheme.Scheme, path string) error {
	attrs := sc.Attributes()
	header := schemeJSON{Scheme: sc.Name(), Attributes: make([]attributeJSON, len(attrs))}
	for i, a := range attrs {
		header.Attributes[i] = attributeRecord(a)
	}
	records := make([]any, 0, sc.Len()+1)
	records = append(records, header)
	for _, e := range sc.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		records = append(records, entryRecord(sc, e))
	}
	if err := writeJSONL(s.fs, path, records); err != nil {
		return fmt.Errorf("exporting %s: %w", sc.Name(), err)
	}
	s.logger.Info("scheme exported",
		zap.String("scheme", sc.Name()),
		zap.String("path", path),
		zap.Int("entries", sc.Len()),
	)
	return nil
}

// ReadScheme rebuilds a scheme from a file written by ExportJSONL. The
// scheme is returned clean and is not registered anywhere.
func (s *Store) ReadScheme(ctx context.Context, path string) (*scheme.Scheme, error) {
	lines, skipped, err := readJSONL(s.fs, path)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("malformed lines skipped", zap.String("path", path), zap.Int("lines", skipped))
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadHeader, path)
	}
	var header schemeJSON
	if err := json.Unmarshal(lines[0], &header); err != nil || header.Scheme == "" {
		return nil, fmt.Errorf("%w: %s", ErrBadHeader, path)
	}

	sc, err := scheme.New(header.Scheme)
	if err != nil {
		return nil, err
	}
	for _, rec := range header.Attributes {
		t, err := datatype.FromSpec(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("type of %s.%s: %w", sc.Name(), rec.Name, err)
		}
		spec := scheme.AttributeSpec{Name: rec.Name, Type: t, Identifier: rec.Identifier, Meta: rec.Meta}
		if rec.Default != nil {
			spec.Default = decodeValue(ctx, t, rec.Default)
		}
		if _, err := sc.AddAttribute(ctx, datatype.Env{}, spec); err != nil {
			return nil, fmt.Errorf("attribute %s.%s: %w", sc.Name(), rec.Name, err)
		}
	}

	attrs := sc.Attributes()
	for i, line := range lines[1:] {
		_, obj, err := decodeRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		values := make(map[string]any, len(attrs))
		for _, a := range attrs {
			if v, ok := obj[a.Name()]; ok {
				values[a.Name()] = decodeValue(ctx, a.Type(), v)
			}
		}
		if err := sc.AddEntry(ctx, datatype.Env{}, scheme.NewEntry(values), false); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
	}
	sc.MarkClean()
	return sc, nil
}

// ReadRows reads a JSONL file of flat objects for import. Columns are
// returned in order of first appearance. Numbers stay json.Number so
// type inference sees them as numbers.
func (s *Store) ReadRows(path string) ([]string, []map[string]any, error) {
	lines, skipped, err := readJSONL(s.fs, path)
	if err != nil {
		return nil, nil, err
	}
	if skipped > 0 {
		s.logger.Warn("malformed lines skipped", zap.String("path", path), zap.Int("lines", skipped))
	}
	var (
		columns []string
		seen    = map[string]bool{}
		rows    = make([]map[string]any, 0, len(lines))
	)
	for i, line := range lines {
		keys, obj, err := decodeRow(line)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		rows = append(rows, obj)
	}
	return columns, rows, nil
}

// decodeRow decodes one JSON object, returning its keys in document
// order alongside the values.
func decodeRow(line []byte) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	obj := map[string]any{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("value of %s: %w", key, err)
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	return keys, obj, nil
}
