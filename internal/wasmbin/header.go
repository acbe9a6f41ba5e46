package wasmbin

import (
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = [4]byte{0x01, 0x00, 0x00, 0x00}

// Section ids, per spec.md §4.3.
const (
	secCustom     byte = 0
	secType       byte = 1
	secImport     byte = 2
	secFunction   byte = 3
	secTable      byte = 4
	secMemory     byte = 5
	secGlobal     byte = 6
	secExport     byte = 7
	secStart      byte = 8
	secElement    byte = 9
	secCode       byte = 10
	secData       byte = 11
	secDataCount  byte = 12
)

// Decode parses a complete Wasm binary image into a Module. The module is
// read-only after this call returns successfully; instantiation happens
// separately (internal/wasmcore.Instantiate).
func Decode(raw []byte) (*wasmcore.Module, error) {
	c := NewCursor(raw)
	if err := decodeHeader(c); err != nil {
		return nil, err
	}

	mod := &wasmcore.Module{Raw: raw, Version: 1}
	var localFuncTypes []uint32
	codeSeen := false

	for !c.Done() {
		id, err := c.ReadByte()
		if err != nil {
			return nil, wrapErr(c, ErrTruncated, err)
		}
		size, err := c.ReadU32()
		if err != nil {
			return nil, wrapErr(c, ErrTruncated, err)
		}
		body, err := c.ReadBytes(int(size))
		if err != nil {
			return nil, wrapErr(c, ErrTruncated, err)
		}
		sc := NewCursor(body)

		switch id {
		case secCustom:
			// Opaque; skipped entirely per spec.md §4.3.
		case secType:
			if err := decodeTypeSection(sc, mod); err != nil {
				return nil, err
			}
		case secImport:
			if err := decodeImportSection(sc, mod); err != nil {
				return nil, err
			}
		case secFunction:
			localFuncTypes, err = decodeFunctionSection(sc)
			if err != nil {
				return nil, err
			}
		case secTable:
			if err := decodeTableSection(sc, mod); err != nil {
				return nil, err
			}
		case secMemory:
			if err := decodeMemorySection(sc, mod); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := decodeGlobalSection(sc, mod); err != nil {
				return nil, err
			}
		case secExport:
			if err := decodeExportSection(sc, mod); err != nil {
				return nil, err
			}
		case secStart:
			if err := decodeStartSection(sc, mod); err != nil {
				return nil, err
			}
		case secElement:
			if err := decodeElementSection(sc, mod); err != nil {
				return nil, err
			}
		case secCode:
			if err := decodeCodeSection(sc, mod, localFuncTypes); err != nil {
				return nil, err
			}
			codeSeen = true
		case secData:
			if err := decodeDataSection(sc, mod); err != nil {
				return nil, err
			}
		case secDataCount:
			n, err := sc.ReadU32()
			if err != nil {
				return nil, wrapErr(sc, ErrTruncated, err)
			}
			mod.DataCount = &n
		default:
			return nil, newErr(c, ErrBadSectionID, "section id out of range")
		}
	}

	if !codeSeen && len(localFuncTypes) > 0 {
		return nil, newErr(c, ErrTruncated, "function section declared functions with no code section")
	}
	return mod, nil
}

func decodeHeader(c *Cursor) error {
	magic, err := c.ReadBytes(4)
	if err != nil {
		return wrapErr(c, ErrBadMagic, err)
	}
	if [4]byte(magic) != wasmMagic {
		return newErr(c, ErrBadMagic, "missing \\0asm magic")
	}
	version, err := c.ReadBytes(4)
	if err != nil {
		return wrapErr(c, ErrBadVersion, err)
	}
	if [4]byte(version) != wasmVersion {
		return newErr(c, ErrBadVersion, "unsupported version")
	}
	return nil
}
