package bytecode

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Format Errors
// ---------------------------------------------------------------------------

var (
	ErrTruncatedVarint     = errors.New("truncated varint")
	ErrVarintOverflow      = errors.New("varint overflows 64 bits")
	ErrBadSignature        = errors.New("bad object signature: expected \"Ne\\x00n\"")
	ErrUnsupportedVersion  = errors.New("unsupported object format version")
	ErrUnexpectedEOF       = errors.New("unexpected end of object data")
	ErrUnsupportedSection  = errors.New("unsupported non-empty section")
	ErrInvalidString       = errors.New("invalid string table entry")
	ErrInvalidIndex        = errors.New("index out of range")
	ErrImplausibleFunction = errors.New("implausible function table entry")
	ErrImplausibleHandler  = errors.New("implausible exception table entry")
)

// FormatError reports a structurally invalid object file. Offset is the byte
// position where decoding failed and Section names the part of the file
// being read.
type FormatError struct {
	Offset  int
	Section string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %s at offset %d: %v", e.Section, e.Offset, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err is, or wraps, a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
