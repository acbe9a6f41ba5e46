package wasi_snapshot_preview1_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outpostwasm/outpost/imports/wasi_snapshot_preview1"
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// mustMemoryInstance builds a one-page memory instance, mirroring the
// single-page instances a real decoded module would link for a
// WASI-targeting guest.
func mustMemoryInstance(t *testing.T) *wasmcore.Instance {
	t.Helper()
	mod := &wasmcore.Module{
		Memories: []*wasmcore.Memory{{Limits: wasmcore.Limits{Minimum: 1}}},
	}
	inst, err := wasmcore.Instantiate(mod, "wasi-test", wasmcore.Imports{}, nil)
	require.NoError(t, err)
	return inst
}

func putIOVec(t *testing.T, inst *wasmcore.Instance, iovAddr, dataAddr uint32, data []byte) {
	t.Helper()
	require.True(t, inst.WriteMemory(dataAddr, data))
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], dataAddr)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(data)))
	require.True(t, inst.WriteMemory(iovAddr, hdr[:]))
}

// TestFdWriteSpecS3 exercises the concatenate-iovecs-and-write path
// spec.md §8's S3 scenario relies on (a fib program printing its result via
// fd_write), using a fake io.Writer instead of hand-assembling fib itself —
// the same FdWrite call wasmtime or a real guest makes, minus the interpreter
// round-trip.
func TestFdWriteSpecS3(t *testing.T) {
	inst := mustMemoryInstance(t)
	const iovAddr, dataAddr, resultAddr = 0, 64, 128

	putIOVec(t, inst, iovAddr, dataAddr, []byte("55\n"))

	var stdout, stderr bytes.Buffer
	fn := wasi_snapshot_preview1.FdWrite(&stdout, &stderr)
	results, err := fn(inst, []wasmcore.Value{
		wasmcore.U32Value(1), // fd 1 == stdout
		wasmcore.U32Value(iovAddr),
		wasmcore.U32Value(1), // one iovec
		wasmcore.U32Value(resultAddr),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, wasi_snapshot_preview1.ErrnoSuccess, results[0].U32())
	require.Equal(t, "55\n", stdout.String())
	require.Empty(t, stderr.String())

	written, ok := inst.ReadMemory(resultAddr, 4)
	require.True(t, ok)
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(written))
}

// TestFdWriteMultipleIovecsConcatenates checks the scatter-gather path:
// several iovecs must be concatenated into a single write call, not written
// separately.
func TestFdWriteMultipleIovecsConcatenates(t *testing.T) {
	inst := mustMemoryInstance(t)
	const iovBase, dataBase, resultAddr = 0, 256, 512

	putIOVec(t, inst, iovBase, dataBase, []byte("fib(10) = "))
	putIOVec(t, inst, iovBase+8, dataBase+64, []byte("55\n"))

	var stdout bytes.Buffer
	fn := wasi_snapshot_preview1.FdWrite(&stdout, &bytes.Buffer{})
	results, err := fn(inst, []wasmcore.Value{
		wasmcore.U32Value(1),
		wasmcore.U32Value(iovBase),
		wasmcore.U32Value(2),
		wasmcore.U32Value(resultAddr),
	})
	require.NoError(t, err)
	require.EqualValues(t, wasi_snapshot_preview1.ErrnoSuccess, results[0].U32())
	require.Equal(t, "fib(10) = 55\n", stdout.String())
}

func TestFdWriteUnknownFdReturnsBadf(t *testing.T) {
	inst := mustMemoryInstance(t)
	fn := wasi_snapshot_preview1.FdWrite(&bytes.Buffer{}, &bytes.Buffer{})
	results, err := fn(inst, []wasmcore.Value{
		wasmcore.U32Value(99), // no such fd
		wasmcore.U32Value(0),
		wasmcore.U32Value(0),
		wasmcore.U32Value(0),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, wasi_snapshot_preview1.ErrnoBadf, results[0].U32())
}

func TestFdWriteOutOfBoundsIovecReturnsFault(t *testing.T) {
	inst := mustMemoryInstance(t)
	fn := wasi_snapshot_preview1.FdWrite(&bytes.Buffer{}, &bytes.Buffer{})
	results, err := fn(inst, []wasmcore.Value{
		wasmcore.U32Value(1),
		wasmcore.U32Value(uint32(len(inst.Memory(0).Bytes))), // iovec header itself off the end
		wasmcore.U32Value(1),
		wasmcore.U32Value(0),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, wasi_snapshot_preview1.ErrnoFault, results[0].U32())
}

// TestProcExitAbortsWithExitError exercises the _start exit-code path
// spec.md §8's S2 scenario needs: a proc_exit call, even with code 0,
// produces an explicit ExitError the caller unwraps into a process exit
// code (a run that simply returns yields no error at all), per
// cmd/outpost run.go's errors.As check.
func TestProcExitAbortsWithExitError(t *testing.T) {
	inst := mustMemoryInstance(t)

	results, err := wasi_snapshot_preview1.ProcExit(inst, []wasmcore.Value{wasmcore.U32Value(0)})
	require.Nil(t, results)
	var exit *wasi_snapshot_preview1.ExitError
	require.ErrorAs(t, err, &exit)
	require.EqualValues(t, 0, exit.ExitCode)

	closed, code := inst.Closed()
	require.True(t, closed)
	require.EqualValues(t, 0, code)
}

func TestProcExitNonZeroCode(t *testing.T) {
	inst := mustMemoryInstance(t)

	_, err := wasi_snapshot_preview1.ProcExit(inst, []wasmcore.Value{wasmcore.U32Value(7)})
	var exit *wasi_snapshot_preview1.ExitError
	require.ErrorAs(t, err, &exit)
	require.EqualValues(t, 7, exit.ExitCode)
}
