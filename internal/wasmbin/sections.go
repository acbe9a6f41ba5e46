package wasmbin

import (
	"github.com/outpostwasm/outpost/api"
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

func decodeValueType(c *Cursor) (byte, error) {
	b, err := c.ReadByte()
	if err != nil {
		return 0, wrapErr(c, ErrTruncated, err)
	}
	switch b {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
		api.ValueTypeV128, api.ValueTypeFuncref, api.ValueTypeExternref:
		return b, nil
	}
	return 0, newErr(c, ErrBadType, "unknown value type byte")
}

func decodeLimits(c *Cursor, defaultMax uint32) (wasmcore.Limits, error) {
	flag, err := c.ReadByte()
	if err != nil {
		return wasmcore.Limits{}, wrapErr(c, ErrTruncated, err)
	}
	min, err := c.ReadU32()
	if err != nil {
		return wasmcore.Limits{}, wrapErr(c, ErrTruncated, err)
	}
	if flag&1 == 0 {
		return wasmcore.Limits{Minimum: min, Maximum: defaultMax, HasMax: false}, nil
	}
	max, err := c.ReadU32()
	if err != nil {
		return wasmcore.Limits{}, wrapErr(c, ErrTruncated, err)
	}
	return wasmcore.Limits{Minimum: min, Maximum: max, HasMax: true}, nil
}

// decodeTypeSection parses section id 1: a vector of `0x60 params results`
// function types.
func decodeTypeSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	mod.Types = make([]*wasmcore.FunctionType, 0, count)
	for i := uint32(0); i < count; i++ {
		tag, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if tag != 0x60 {
			return newErr(c, ErrBadType, "function type must begin with 0x60")
		}
		pc, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		params := make([]api.ValueType, pc)
		for j := range params {
			if params[j], err = decodeValueType(c); err != nil {
				return err
			}
		}
		rc, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		results := make([]api.ValueType, rc)
		for j := range results {
			if results[j], err = decodeValueType(c); err != nil {
				return err
			}
		}
		mod.Types = append(mod.Types, &wasmcore.FunctionType{Params: params, Results: results})
	}
	return nil
}

// decodeImportSection parses section id 2.
func decodeImportSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		modName, err := c.ReadName()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		field, err := c.ReadName()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		tag, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		imp := &wasmcore.Import{Module: modName, Field: field}
		switch tag {
		case 0x00:
			imp.Kind = wasmcore.ImportKindFunc
			if imp.FuncTypeIndex, err = c.ReadU32(); err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			mod.Functions = append(mod.Functions, &wasmcore.FunctionEntry{TypeIndex: imp.FuncTypeIndex, IsHost: true, DebugName: modName + "." + field})
			mod.ImportedFuncCount++
		case 0x01:
			imp.Kind = wasmcore.ImportKindTable
			rk, err := c.ReadByte()
			if err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			imp.TableRefKind = rk
			if imp.TableLimits, err = decodeLimits(c, wasmcore.DefaultTableMax); err != nil {
				return err
			}
			mod.ImportedTableCount++
		case 0x02:
			imp.Kind = wasmcore.ImportKindMemory
			if imp.MemoryLimits, err = decodeLimits(c, wasmcore.DefaultMemoryMax); err != nil {
				return err
			}
			mod.ImportedMemoryCount++
		case 0x03:
			imp.Kind = wasmcore.ImportKindGlobal
			if imp.GlobalType, err = decodeValueType(c); err != nil {
				return err
			}
			mb, err := c.ReadByte()
			if err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			if mb == 1 {
				imp.GlobalMut = wasmcore.Var
			}
			mod.ImportedGlobalCount++
		default:
			return newErr(c, ErrBadImport, "unknown import kind tag")
		}
		mod.Imports = append(mod.Imports, imp)
	}
	return nil
}

// decodeFunctionSection parses section id 3: one type index per locally
// defined function. Bodies arrive later, in the same order, in the code
// section.
func decodeFunctionSection(c *Cursor) ([]uint32, error) {
	count, err := c.ReadU32()
	if err != nil {
		return nil, wrapErr(c, ErrTruncated, err)
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = c.ReadU32(); err != nil {
			return nil, wrapErr(c, ErrTruncated, err)
		}
	}
	return out, nil
}

func decodeTableSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		rk, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		lim, err := decodeLimits(c, wasmcore.DefaultTableMax)
		if err != nil {
			return err
		}
		mod.Tables = append(mod.Tables, &wasmcore.Table{RefKind: rk, Limits: lim})
	}
	return nil
}

func decodeMemorySection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		lim, err := decodeLimits(c, wasmcore.DefaultMemoryMax)
		if err != nil {
			return err
		}
		mod.Memories = append(mod.Memories, &wasmcore.Memory{Limits: lim})
	}
	return nil
}

func decodeGlobalSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		vt, err := decodeValueType(c)
		if err != nil {
			return err
		}
		mb, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		mut := wasmcore.Const
		if mb == 1 {
			mut = wasmcore.Var
		}
		exprStart, _, err := decodeExpr(c, mod)
		if err != nil {
			return err
		}
		mod.Globals = append(mod.Globals, &wasmcore.Global{Type: vt, Mutability: mut, InitExprPC: exprStart})
	}
	return nil
}

func decodeExportSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		name, err := c.ReadName()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		kind, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if kind > 0x03 {
			return newErr(c, ErrBadType, "unknown export kind")
		}
		idx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		mod.Exports = append(mod.Exports, &wasmcore.Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func decodeStartSection(c *Cursor, mod *wasmcore.Module) error {
	idx, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	mod.StartFunc = &idx
	return nil
}

// decodeElementSection parses section id 9, covering all 8 E0x00-E0x07
// encodings per spec.md §4.3.
func decodeElementSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		flag, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		seg := &wasmcore.ElementSegment{RefKind: api.RefTypeFuncRef}
		switch flag {
		case 0x00: // active, table 0, expr offset, func-index vector
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementActive
			seg.OffsetPC = off
			if seg.FuncIndices, err = decodeFuncIndexVector(c); err != nil {
				return err
			}
		case 0x01: // passive, elemkind, func-index vector
			if err := expectElemKindZero(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementPassive
			if seg.FuncIndices, err = decodeFuncIndexVector(c); err != nil {
				return err
			}
		case 0x02: // active, explicit table index, expr offset, elemkind, func-index vector
			if seg.TableIndex, err = c.ReadU32(); err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.OffsetPC = off
			if err := expectElemKindZero(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementActive
			if seg.FuncIndices, err = decodeFuncIndexVector(c); err != nil {
				return err
			}
		case 0x03: // declarative, elemkind, func-index vector
			if err := expectElemKindZero(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementDeclarative
			if seg.FuncIndices, err = decodeFuncIndexVector(c); err != nil {
				return err
			}
		case 0x04: // active, table 0, expr offset, expr vector
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementActive
			seg.OffsetPC = off
			if seg.ExprPCs, err = decodeExprVector(c, mod); err != nil {
				return err
			}
		case 0x05: // passive, reftype, expr vector
			if seg.RefKind, err = decodeValueType(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementPassive
			if seg.ExprPCs, err = decodeExprVector(c, mod); err != nil {
				return err
			}
		case 0x06: // active, explicit table index, expr offset, reftype, expr vector
			if seg.TableIndex, err = c.ReadU32(); err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.OffsetPC = off
			if seg.RefKind, err = decodeValueType(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementActive
			if seg.ExprPCs, err = decodeExprVector(c, mod); err != nil {
				return err
			}
		case 0x07: // declarative, reftype, expr vector
			if seg.RefKind, err = decodeValueType(c); err != nil {
				return err
			}
			seg.Mode = wasmcore.ElementDeclarative
			if seg.ExprPCs, err = decodeExprVector(c, mod); err != nil {
				return err
			}
		default:
			return newErr(c, ErrBadType, "unknown element segment flag")
		}
		mod.Elements = append(mod.Elements, seg)
	}
	return nil
}

func expectElemKindZero(c *Cursor) error {
	b, err := c.ReadByte()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	if b != 0x00 {
		return newErr(c, ErrBadType, "elemkind must be 0x00 (funcref)")
	}
	return nil
}

func decodeFuncIndexVector(c *Cursor) ([]uint32, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, wrapErr(c, ErrTruncated, err)
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = c.ReadU32(); err != nil {
			return nil, wrapErr(c, ErrTruncated, err)
		}
	}
	return out, nil
}

func decodeExprVector(c *Cursor, mod *wasmcore.Module) ([]uint32, error) {
	n, err := c.ReadU32()
	if err != nil {
		return nil, wrapErr(c, ErrTruncated, err)
	}
	out := make([]uint32, n)
	for i := range out {
		start, _, err := decodeExpr(c, mod)
		if err != nil {
			return nil, err
		}
		out[i] = start
	}
	return out, nil
}

// decodeCodeSection parses section id 10, pairing each body with the type
// index the function section already recorded, and appends the resulting
// Local FunctionEntry to mod.Functions (after the imported Host entries).
func decodeCodeSection(c *Cursor, mod *wasmcore.Module, localFuncTypes []uint32) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	if int(count) != len(localFuncTypes) {
		return newErr(c, ErrTruncated, "code section count does not match function section count")
	}
	for i := uint32(0); i < count; i++ {
		bodySize, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		bodyBytes, err := c.ReadBytes(int(bodySize))
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		bc := NewCursor(bodyBytes)

		groupCount, err := bc.ReadU32()
		if err != nil {
			return wrapErr(bc, ErrTruncated, err)
		}
		locals := make([]wasmcore.LocalGroup, groupCount)
		for j := range locals {
			n, err := bc.ReadU32()
			if err != nil {
				return wrapErr(bc, ErrTruncated, err)
			}
			vt, err := decodeValueType(bc)
			if err != nil {
				return err
			}
			locals[j] = wasmcore.LocalGroup{Count: n, Type: vt}
		}

		start, end, err := decodeExpr(bc, mod)
		if err != nil {
			return err
		}
		body := &wasmcore.FuncBody{Locals: locals, CodeStart: start, CodeEnd: end, LastPC: end - 1}
		mod.Functions = append(mod.Functions, &wasmcore.FunctionEntry{
			TypeIndex: localFuncTypes[i],
			Body:      body,
		})
	}
	return nil
}

func decodeDataSection(c *Cursor, mod *wasmcore.Module) error {
	count, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	for i := uint32(0); i < count; i++ {
		flag, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		seg := &wasmcore.DataSegment{}
		switch flag {
		case 0x00:
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.Mode = wasmcore.DataActive
			seg.OffsetPC = off
		case 0x01:
			seg.Mode = wasmcore.DataPassive
		case 0x02:
			if seg.MemIndex, err = c.ReadU32(); err != nil {
				return wrapErr(c, ErrTruncated, err)
			}
			off, _, err := decodeExpr(c, mod)
			if err != nil {
				return err
			}
			seg.Mode = wasmcore.DataActive
			seg.OffsetPC = off
		default:
			return newErr(c, ErrBadType, "unknown data segment flag")
		}
		n, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if seg.Bytes, err = c.ReadBytes(int(n)); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		mod.Data = append(mod.Data, seg)
	}
	return nil
}
