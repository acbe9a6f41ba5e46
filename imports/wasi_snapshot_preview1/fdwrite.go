package wasi_snapshot_preview1

import (
	"encoding/binary"
	"io"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

const FunctionFdWrite = "fd_write"

// stdoutFd and stderrFd are the only file descriptors this bridge
// recognizes; everything else is ErrnoBadf, since outpost carries no
// general filesystem layer (spec.md §1 Non-goals).
const (
	stdoutFd = 1
	stderrFd = 2
)

// FdWrite implements the WASI fd_write function against stdout and
// stderr only: it reads iovsCount (offset, length) pairs from guest
// memory starting at iovs, concatenates the referenced bytes, writes them
// to the requested writer in one call, and stores the total byte count at
// resultSize.
//
// See https://github.com/WebAssembly/WASI/blob/main/phases/snapshot/docs.md#fd_write
func FdWrite(stdout, stderr io.Writer) wasmcore.HostFunc {
	return func(inst *wasmcore.Instance, args []wasmcore.Value) ([]wasmcore.Value, error) {
		fd := args[0].U32()
		iovs := args[1].U32()
		iovsCount := args[2].U32()
		resultSize := args[3].U32()

		var w io.Writer
		switch fd {
		case stdoutFd:
			w = stdout
		case stderrFd:
			w = stderr
		default:
			return []wasmcore.Value{wasmcore.U32Value(ErrnoBadf)}, nil
		}

		var written []byte
		for i := uint32(0); i < iovsCount; i++ {
			iov := iovs + i*8
			hdr, ok := inst.ReadMemory(iov, 8)
			if !ok {
				return []wasmcore.Value{wasmcore.U32Value(ErrnoFault)}, nil
			}
			offset := binary.LittleEndian.Uint32(hdr[0:4])
			length := binary.LittleEndian.Uint32(hdr[4:8])
			if length == 0 {
				continue
			}
			chunk, ok := inst.ReadMemory(offset, length)
			if !ok {
				return []wasmcore.Value{wasmcore.U32Value(ErrnoFault)}, nil
			}
			written = append(written, chunk...)
		}

		n, err := w.Write(written)
		if err != nil {
			return []wasmcore.Value{wasmcore.U32Value(ErrnoIo)}, nil
		}

		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		if !inst.WriteMemory(resultSize, buf[:]) {
			return []wasmcore.Value{wasmcore.U32Value(ErrnoFault)}, nil
		}
		return []wasmcore.Value{wasmcore.U32Value(ErrnoSuccess)}, nil
	}
}
