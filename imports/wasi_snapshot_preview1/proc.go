package wasi_snapshot_preview1

import (
	"fmt"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

const FunctionProcExit = "proc_exit"

// ExitError is returned by ProcExit's callback so the call it aborts
// unwinds through the interpreter as a host error rather than a trap
// (spec.md §4.8's panic/recover boundary distinguishes the two); the CLI
// unwraps it to choose its own exit code.
type ExitError struct {
	ExitCode uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("module exited with code %d", e.ExitCode)
}

// ProcExit implements the WASI proc_exit function: it marks inst closed
// with the given exit code and aborts the in-flight call, preventing any
// guest code scheduled after the call (commonly an `unreachable`
// instruction LLVM inserts after exit) from ever running.
//
// See https://github.com/WebAssembly/WASI/blob/main/phases/snapshot/docs.md#proc_exit
func ProcExit(inst *wasmcore.Instance, args []wasmcore.Value) ([]wasmcore.Value, error) {
	exitCode := args[0].U32()
	inst.Close(exitCode)
	return nil, &ExitError{ExitCode: exitCode}
}
