package wasi_snapshot_preview1

import (
	"io"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// ModuleName is the import module name WASI-targeting compilers emit.
const ModuleName = "wasi_snapshot_preview1"

// Instantiate returns the fd_write/proc_exit bindings as an Imports
// fragment, ready to be merged into the map passed to Runtime.Instantiate.
func Instantiate(stdout, stderr io.Writer) wasmcore.Imports {
	return wasmcore.Imports{
		ModuleName: {
			FunctionFdWrite: {Kind: wasmcore.ImportKindFunc, Host: FdWrite(stdout, stderr)},
			FunctionProcExit: {Kind: wasmcore.ImportKindFunc, Host: ProcExit},
		},
	}
}
