// Package wasi_snapshot_preview1 implements the two WASI host functions
// spec.md §6 names: fd_write and proc_exit, bound into a Runtime's import
// map via Instantiate.
package wasi_snapshot_preview1

// Errno is the error code a WASI function returns, packed into the low
// 32 bits of the Value the interpreter pushes as that function's result,
// per spec.md §4.8's host-callback return contract.
type Errno = uint32

// Only the codes fd_write and proc_exit can actually produce are kept,
// trimmed from the teacher's full POSIX errno table, which enumerates
// every WASI error code for WASI functions this bridge doesn't implement.
const (
	ErrnoSuccess Errno = 0
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoIo      Errno = 29
)

// ErrnoName returns the POSIX error code name, except ErrnoSuccess, which
// is not an error.
func ErrnoName(errno Errno) string {
	switch errno {
	case ErrnoSuccess:
		return "ESUCCESS"
	case ErrnoBadf:
		return "EBADF"
	case ErrnoFault:
		return "EFAULT"
	case ErrnoIo:
		return "EIO"
	}
	return "EINVAL"
}
