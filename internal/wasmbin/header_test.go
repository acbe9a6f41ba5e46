package wasmbin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outpostwasm/outpost/internal/leb128"
)

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func vec(items ...[]byte) []byte {
	out := leb128.EncodeUint32(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	out := leb128.EncodeUint32(uint32(len(s)))
	return append(out, []byte(s)...)
}

func TestDecodeEmptyModule(t *testing.T) {
	raw := append([]byte{}, wasmMagic[:]...)
	raw = append(raw, wasmVersion[:]...)

	mod, err := Decode(raw)
	require.NoError(t, err)
	require.Empty(t, mod.Types)
	require.Empty(t, mod.Functions)
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestDecodeBadVersion(t *testing.T) {
	raw := append([]byte{}, wasmMagic[:]...)
	raw = append(raw, 0x02, 0x00, 0x00, 0x00)
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x61, 0x73})
	require.Error(t, err)
}

// TestDecodeConstFunction builds a module by hand with a single exported
// function `() -> i32` whose body is `i32.const 42; end`, exercising the
// type, function, code, and export sections end to end.
func TestDecodeConstFunction(t *testing.T) {
	// 0x60, param_count=0, result_count=1, i32
	funcType := []byte{0x60, 0x00, 0x01, 0x7f}
	typeSecBody := vec(funcType)

	funcSecBody := vec(leb128.EncodeUint32(0)) // function 0 has type index 0

	// body: locals(0 groups), i32.const 42 (0x41, LEB 42), end (0x0b)
	body := append([]byte{0x00}, 0x41)
	body = append(body, leb128.EncodeInt32(42)...)
	body = append(body, 0x0b)
	codeSecBody := vec(append(leb128.EncodeUint32(uint32(len(body))), body...))

	exportSecBody := vec(append(append(name("answer"), 0x00), leb128.EncodeUint32(0)...))

	raw := append([]byte{}, wasmMagic[:]...)
	raw = append(raw, wasmVersion[:]...)
	raw = append(raw, section(secType, typeSecBody)...)
	raw = append(raw, section(secFunction, funcSecBody)...)
	raw = append(raw, section(secExport, exportSecBody)...)
	raw = append(raw, section(secCode, codeSecBody)...)

	mod, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, mod.Types, 1)
	require.Len(t, mod.Functions, 1)
	require.Len(t, mod.Exports, 1)
	require.Equal(t, "answer", mod.Exports[0].Name)

	fe := mod.Functions[0]
	require.NotNil(t, fe.Body)
	instr := mod.Instructions[fe.Body.CodeStart]
	require.Equal(t, int32(42), instr.I32)
}
