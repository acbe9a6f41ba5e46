// Package wasmbin decodes the Wasm binary format: the module header, the
// twelve standard sections, and the instruction stream, producing the
// flat, decode-time representation defined by internal/wasmcore.
package wasmbin

import (
	"fmt"
	"io"

	"github.com/outpostwasm/outpost/internal/leb128"
)

// Cursor is a bounds-checked forward-only reader over an in-memory byte
// slice, used for both whole-module and section-scoped decoding. A read
// past the end of buf returns an error rather than panicking, so a
// truncated module surfaces as a DecodeError: ReadByte and PeekByte report
// io.EOF (the io.ByteReader convention), the multi-byte reads report
// io.ErrUnexpectedEOF.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for reading starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Offset returns the cursor's current byte offset into buf.
func (c *Cursor) Offset() uint64 { return uint64(c.pos) }

// Len returns the number of unread bytes remaining.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Done reports whether the cursor has consumed the entire buffer.
func (c *Cursor) Done() bool { return c.pos >= len(c.buf) }

// ReadByte implements io.ByteReader, satisfying leb128's byteReader.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// PeekByte reports the next byte without consuming it.
func (c *Cursor) PeekByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	return c.buf[c.pos], nil
}

// ReadBytes consumes and returns the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return io.ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

// ReadU32 reads an unsigned LEB128 uint32 (used for indices and counts).
func (c *Cursor) ReadU32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(c)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadU64 reads an unsigned LEB128 uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	v, _, err := leb128.DecodeUint64(c)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadI32 reads a signed LEB128 int32.
func (c *Cursor) ReadI32() (int32, error) {
	v, _, err := leb128.DecodeInt32(c)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadI64 reads a signed LEB128 int64.
func (c *Cursor) ReadI64() (int64, error) {
	v, _, err := leb128.DecodeInt64(c)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadI33AsI64 reads the signed 33-bit blocktype immediate.
func (c *Cursor) ReadI33AsI64() (int64, error) {
	v, _, err := leb128.DecodeInt33AsInt64(c)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadName reads a length-prefixed UTF-8 string (the `name` production).
func (c *Cursor) ReadName() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadF32Bits reads 4 little-endian bytes as the bit pattern of an f32 constant.
func (c *Cursor) ReadF32Bits() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadF64Bits reads 8 little-endian bytes as the bit pattern of an f64 constant.
func (c *Cursor) ReadF64Bits() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func fmtOffset(c *Cursor) string {
	return fmt.Sprintf("offset %#x", c.pos)
}
