package datatype

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Spec is the serializable description of a DataType. Unlike Name it
// carries every parameter, including path options and extension payloads.
type Spec struct {
	Kind       string   `json:"kind"`
	Elem       *Spec    `json:"elem,omitempty"`
	Scheme     string   `json:"scheme,omitempty"`
	Attribute  string   `json:"attribute,omitempty"`
	AllowEmpty bool     `json:"allow_empty,omitempty"`
	BasePath   string   `json:"base_path,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	MustExist  bool     `json:"must_exist,omitempty"`
	Extension  string   `json:"extension,omitempty"`
	Payload    any      `json:"payload,omitempty"`
}

// Spec returns the serializable description of t.
func (t *DataType) Spec() Spec {
	s := Spec{Kind: t.kind.String()}
	switch t.kind {
	case KindList:
		elem := t.elem.Spec()
		s.Elem = &elem
	case KindReference:
		s.Scheme = t.ref.Scheme
		s.Attribute = t.ref.Attribute
		s.AllowEmpty = t.ref.AllowEmpty
	case KindFilePath, KindFolder:
		s.BasePath = t.path.BasePath
		s.Extensions = t.Path().Extensions
		s.MustExist = t.path.MustExist
	case KindExtension:
		s.Extension = t.ext
		s.Payload = Encode(t.payload)
	}
	return s
}

func kindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, true
		}
	}
	return 0, false
}

// FromSpec rebuilds a DataType from its Spec.
func FromSpec(s Spec) (*DataType, error) {
	kind, ok := kindFromName(s.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, s.Kind)
	}
	switch kind {
	case KindList:
		if s.Elem == nil {
			return nil, fmt.Errorf("%w: list without element type", types.ErrUnknownType)
		}
		elem, err := FromSpec(*s.Elem)
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case KindReference:
		if s.Scheme == "" || s.Attribute == "" {
			return nil, fmt.Errorf("%w: reference without target", types.ErrUnknownType)
		}
		return Reference(s.Scheme, s.Attribute, s.AllowEmpty), nil
	case KindFilePath:
		return FilePath(PathOptions{BasePath: s.BasePath, Extensions: s.Extensions, MustExist: s.MustExist}), nil
	case KindFolder:
		return Folder(PathOptions{BasePath: s.BasePath, MustExist: s.MustExist}), nil
	case KindExtension:
		if s.Extension == "" {
			return nil, fmt.Errorf("%w: extension without name", types.ErrUnknownType)
		}
		return Extension(s.Extension, s.Payload), nil
	default:
		return &DataType{kind: kind}, nil
	}
}

// MarshalJSON encodes t as its Spec.
func (t *DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Spec())
}

// UnmarshalJSON decodes a Spec into t.
func (t *DataType) UnmarshalJSON(data []byte) error {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromSpec(s)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// ParseType parses a type name as produced by Name: a kind name, or one
// of List<T>, Reference<Scheme.Attribute> (a trailing "?" allows empty
// references) and Extension<name>. Path kinds parse with default options.
func ParseType(name string) (*DataType, error) {
	name = strings.TrimSpace(name)
	open := strings.IndexByte(name, '<')
	if open < 0 {
		kind, ok := kindFromName(name)
		if !ok || kind == KindList || kind == KindReference || kind == KindExtension {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
		}
		return &DataType{kind: kind}, nil
	}
	if !strings.HasSuffix(name, ">") {
		return nil, fmt.Errorf("%w: unbalanced %q", types.ErrUnknownType, name)
	}
	head := name[:open]
	arg := strings.TrimSpace(name[open+1 : len(name)-1])
	kind, ok := kindFromName(head)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownType, name)
	}
	switch kind {
	case KindList:
		elem, err := ParseType(arg)
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case KindReference:
		allowEmpty := strings.HasSuffix(arg, "?")
		arg = strings.TrimSuffix(arg, "?")
		scheme, attr, found := strings.Cut(arg, ".")
		if !found || scheme == "" || attr == "" {
			return nil, fmt.Errorf("%w: reference target %q", types.ErrUnknownType, arg)
		}
		return Reference(scheme, attr, allowEmpty), nil
	case KindExtension:
		if arg == "" {
			return nil, fmt.Errorf("%w: extension without name", types.ErrUnknownType)
		}
		return Extension(arg, nil), nil
	default:
		return nil, fmt.Errorf("%w: %s takes no parameters", types.ErrUnknownType, head)
	}
}
