// Package datatype is the closed catalog of value types an attribute can
// hold. Every type is a *DataType tagged with a Kind; the per-kind
// behaviour (validation, conversion, defaults, ordering) lives in switches
// over that Kind rather than in an open interface hierarchy. The Extension
// kind is the single escape hatch for plugin-defined types.
package datatype

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Kind tags a DataType variant.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindDateTime
	KindGuid
	KindFilePath
	KindFolder
	KindColor
	KindList
	KindReference
	KindExtension
)

var kindNames = map[Kind]string{
	KindText:      "Text",
	KindInteger:   "Integer",
	KindFloat:     "Float",
	KindBoolean:   "Boolean",
	KindDateTime:  "DateTime",
	KindGuid:      "Guid",
	KindFilePath:  "FilePath",
	KindFolder:    "Folder",
	KindColor:     "Color",
	KindList:      "List",
	KindReference: "Reference",
	KindExtension: "Extension",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// epoch is the DateTime default.
var epoch = time.Unix(0, 0).UTC()

// PathOptions parameterizes the FilePath and Folder kinds.
type PathOptions struct {
	// BasePath resolves relative values. Empty falls back to Env.BasePath.
	BasePath string
	// Extensions restricts FilePath values to these suffixes (".png").
	Extensions []string
	// MustExist makes validation consult the file system.
	MustExist bool
}

// RefTarget names the identifier attribute a Reference points at.
type RefTarget struct {
	Scheme     string
	Attribute  string
	AllowEmpty bool
}

// DataType is an immutable type variant. Construct one with the kind
// constructors below; the zero value is not usable.
type DataType struct {
	kind    Kind
	elem    *DataType
	path    PathOptions
	ref     RefTarget
	ext     string
	payload any
}

// Text returns the free-text type.
func Text() *DataType { return &DataType{kind: KindText} }

// Integer returns the 64-bit integer type.
func Integer() *DataType { return &DataType{kind: KindInteger} }

// Float returns the 64-bit floating point type.
func Float() *DataType { return &DataType{kind: KindFloat} }

// Boolean returns the boolean type.
func Boolean() *DataType { return &DataType{kind: KindBoolean} }

// DateTime returns the UTC timestamp type.
func DateTime() *DataType { return &DataType{kind: KindDateTime} }

// Guid returns the UUID type.
func Guid() *DataType { return &DataType{kind: KindGuid} }

// Color returns the RGB color type.
func Color() *DataType { return &DataType{kind: KindColor} }

// FilePath returns a file path type.
func FilePath(opts PathOptions) *DataType {
	opts.Extensions = slices.Clone(opts.Extensions)
	return &DataType{kind: KindFilePath, path: opts}
}

// Folder returns a directory path type. Extensions are ignored.
func Folder(opts PathOptions) *DataType {
	opts.Extensions = nil
	return &DataType{kind: KindFolder, path: opts}
}

// ListOf returns a list type whose elements are of elem. A nil elem is a
// programming error and panics.
func ListOf(elem *DataType) *DataType {
	if elem == nil {
		panic("datatype: ListOf called with nil element type")
	}
	return &DataType{kind: KindList, elem: elem}
}

// Reference returns a foreign-key type whose values must match an
// identifier value of scheme.attribute.
func Reference(scheme, attribute string, allowEmpty bool) *DataType {
	return &DataType{kind: KindReference, ref: RefTarget{Scheme: scheme, Attribute: attribute, AllowEmpty: allowEmpty}}
}

// Extension returns a plugin-defined type. name identifies it; payload is
// its default value and is otherwise opaque to the catalog.
func Extension(name string, payload any) *DataType {
	return &DataType{kind: KindExtension, ext: name, payload: CloneValue(payload)}
}

// Kind returns the variant tag.
func (t *DataType) Kind() Kind { return t.kind }

// Elem returns the element type of a List, nil otherwise.
func (t *DataType) Elem() *DataType { return t.elem }

// Target returns the Reference target. Only meaningful for KindReference.
func (t *DataType) Target() RefTarget { return t.ref }

// Path returns the path options of a FilePath or Folder.
func (t *DataType) Path() PathOptions {
	p := t.path
	p.Extensions = slices.Clone(p.Extensions)
	return p
}

// ExtensionName returns the plugin name of an Extension.
func (t *DataType) ExtensionName() string { return t.ext }

// WithTarget returns a copy of a Reference retargeted at scheme.attribute.
// A List of references is rebuilt around the retargeted element type.
// Other kinds are returned unchanged.
func (t *DataType) WithTarget(scheme, attribute string) *DataType {
	switch t.kind {
	case KindReference:
		return Reference(scheme, attribute, t.ref.AllowEmpty)
	case KindList:
		elem := t.elem.WithTarget(scheme, attribute)
		if elem == t.elem {
			return t
		}
		return ListOf(elem)
	default:
		return t
	}
}

// Referent returns the Reference target of t, looking through List
// element types. ok is false when t holds no reference.
func (t *DataType) Referent() (target RefTarget, ok bool) {
	for t != nil {
		switch t.kind {
		case KindReference:
			return t.ref, true
		case KindList:
			t = t.elem
		default:
			return RefTarget{}, false
		}
	}
	return RefTarget{}, false
}

// Name is the type's identity: the kind name plus its structural
// parameters, e.g. "List<Integer>" or "Reference<Items.Id>".
func (t *DataType) Name() string {
	switch t.kind {
	case KindList:
		return fmt.Sprintf("List<%s>", t.elem.Name())
	case KindReference:
		opt := ""
		if t.ref.AllowEmpty {
			opt = "?"
		}
		return fmt.Sprintf("Reference<%s.%s%s>", t.ref.Scheme, t.ref.Attribute, opt)
	case KindExtension:
		return fmt.Sprintf("Extension<%s>", t.ext)
	default:
		return t.kind.String()
	}
}

func (t *DataType) String() string { return t.Name() }

// Equal reports structural equality by name and parameters.
func (t *DataType) Equal(o *DataType) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.kind != o.kind {
		return false
	}
	switch t.kind {
	case KindList:
		return t.elem.Equal(o.elem)
	case KindReference:
		return t.ref == o.ref
	case KindFilePath, KindFolder:
		return t.path.BasePath == o.path.BasePath &&
			t.path.MustExist == o.path.MustExist &&
			slices.Equal(t.path.Extensions, o.path.Extensions)
	case KindExtension:
		return t.ext == o.ext
	default:
		return true
	}
}

// CloneDefault returns a fresh copy of the type's default value. Mutable
// defaults (lists, extension payloads) are never shared between callers.
func (t *DataType) CloneDefault() any {
	switch t.kind {
	case KindText, KindFilePath, KindFolder:
		return ""
	case KindInteger:
		return int64(0)
	case KindFloat:
		return float64(0)
	case KindBoolean:
		return false
	case KindDateTime:
		return epoch
	case KindGuid:
		return uuid.Nil
	case KindColor:
		return colorful.Color{}
	case KindList:
		return []any{}
	case KindReference:
		return nil
	case KindExtension:
		return CloneValue(t.payload)
	default:
		return nil
	}
}

// IdentifierSource resolves the live identifier values of a scheme
// attribute. The registry implements it; Reference validation and
// conversion consume it through Env.
type IdentifierSource interface {
	IdentifierValues(scheme, attribute string) ([]any, *DataType, error)
}

// Env carries the capabilities validation and conversion may need. It is
// passed explicitly; the catalog never reads global state.
type Env struct {
	Identifiers IdentifierSource
	FS          types.FileSystem
	BasePath    string
	// Timeout bounds each file-system existence check. Zero means the
	// caller's context is the only bound.
	Timeout time.Duration
}
