package types

import "errors"

// Type catalog errors.
var (
	ErrInvalidValue     = errors.New("invalid value")
	ErrConversionFailed = errors.New("conversion failed")
	ErrUnknownType      = errors.New("unknown data type")
	ErrListFromString   = errors.New("string cannot be coerced into a typed list")
	ErrNoTypeFits       = errors.New("no data type accepts every sample")
	ErrReferenceTarget  = errors.New("reference target not resolvable")
	ErrPathNotFound     = errors.New("path does not exist")
)

// Scheme errors.
var (
	ErrInvalidName         = errors.New("invalid name")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrNilType             = errors.New("data type must not be nil")
	ErrUnknownAttribute    = errors.New("unknown attribute")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrEntryExists         = errors.New("entry already belongs to the scheme")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrDuplicateIdentifier = errors.New("duplicate identifier value")
	ErrIdentifierExists    = errors.New("scheme already has an identifier attribute")
	ErrIdentifierWrite     = errors.New("identifier values must be changed through the identifier update")
	ErrNotIdentifier       = errors.New("attribute is not the identifier")
)

// Registry errors.
var (
	ErrSchemeNotFound = errors.New("scheme not found")
	ErrSchemeExists   = errors.New("scheme already loaded")
	ErrReservedScheme = errors.New("scheme name is reserved")
	ErrNoStore        = errors.New("registry has no store")
)

// Command and history errors.
var (
	ErrBadState    = errors.New("command is not in a valid state for this operation")
	ErrNotUndoable = errors.New("command cannot be undone")
)

// Config validation errors.
var (
	ErrMaxHistoryInvalid = errors.New("max history must be positive")
	ErrTimeoutInvalid    = errors.New("validation timeout must be positive")
	ErrLogLevelUnknown   = errors.New("unknown log level")
	ErrLogFormatUnknown  = errors.New("unknown log format")
)
