package sqlite

import (
	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

// attributeJSON is the column layout of an attributes row, also used as
// the header record of a scheme export.
type attributeJSON struct {
	Name       string        `json:"name"`
	Type       datatype.Spec `json:"type"`
	Default    any           `json:"default,omitempty"`
	Identifier bool          `json:"identifier,omitempty"`
	Meta       scheme.Meta   `json:"meta"`
}

// schemeJSON is the header line written at the top of a scheme export.
type schemeJSON struct {
	Scheme     string          `json:"scheme"`
	Attributes []attributeJSON `json:"attributes"`
}

func attributeRecord(a *scheme.Attribute) attributeJSON {
	return attributeJSON{
		Name:       a.Name(),
		Type:       a.Type().Spec(),
		Default:    datatype.Encode(a.Default()),
		Identifier: a.IsIdentifier(),
		Meta:       a.Meta(),
	}
}

// entryRecord encodes an entry's values in attribute order.
func entryRecord(s *scheme.Scheme, e *scheme.Entry) map[string]any {
	out := make(map[string]any, len(s.Attributes()))
	for _, a := range s.Attributes() {
		out[a.Name()] = datatype.Encode(e.Value(a.Name()))
	}
	return out
}
