package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

// parseAttr parses an attribute flag of the form Name:Type or
// Name:Type=default.
func parseAttr(s string) (scheme.AttributeSpec, error) {
	name, rest, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return scheme.AttributeSpec{}, fmt.Errorf("attribute %q: want Name:Type[=default]", s)
	}
	typeName, def, hasDefault := strings.Cut(rest, "=")
	t, err := datatype.ParseType(typeName)
	if err != nil {
		return scheme.AttributeSpec{}, fmt.Errorf("attribute %q: %w", s, err)
	}
	spec := scheme.AttributeSpec{Name: strings.TrimSpace(name), Type: t}
	if hasDefault {
		spec.Default = def
	}
	return spec, nil
}

// parseAssignments parses key=value arguments. Values stay text; the
// scheme converts them to each attribute's type.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%q: want attribute=value", arg)
		}
		values[strings.TrimSpace(key)] = value
	}
	return values, nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an index", s)
	}
	return i, nil
}

// parseSort parses a --sort value. A leading "-" sorts descending.
func parseSort(s string, desc bool) scheme.SortOrder {
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return scheme.SortOrder{Attribute: rest, Descending: true}
	}
	return scheme.SortOrder{Attribute: s, Descending: desc}
}
