package wasmbin

import "fmt"

// FormatErrorCode enumerates the ways a byte sequence can fail to be a
// valid Wasm module, per spec.md §7's format-error taxonomy.
type FormatErrorCode string

const (
	ErrTruncated    FormatErrorCode = "TRUNCATED"
	ErrEOF          FormatErrorCode = "EOF"
	ErrBadMagic     FormatErrorCode = "BAD_MAGIC"
	ErrBadVersion   FormatErrorCode = "BAD_VERSION"
	ErrBadSectionID FormatErrorCode = "BAD_SECTION_ID"
	ErrBadOpcode    FormatErrorCode = "BAD_OPCODE"
	ErrBadImport    FormatErrorCode = "BAD_IMPORT"
	ErrBadType      FormatErrorCode = "BAD_TYPE"
	ErrOverflow     FormatErrorCode = "OVERFLOW"
)

// DecodeError reports a format violation found while decoding a module,
// naming the byte offset at which it was detected so a caller can locate
// the offending bytes.
type DecodeError struct {
	Code   FormatErrorCode
	Offset uint64
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("decode: %s at offset %#x: %s", e.Code, e.Offset, e.Reason)
	}
	return fmt.Sprintf("decode: %s at offset %#x", e.Code, e.Offset)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

func newErr(c *Cursor, code FormatErrorCode, reason string) *DecodeError {
	return &DecodeError{Code: code, Offset: c.Offset(), Reason: reason}
}

func wrapErr(c *Cursor, code FormatErrorCode, err error) *DecodeError {
	return &DecodeError{Code: code, Offset: c.Offset(), Reason: err.Error(), Cause: err}
}
