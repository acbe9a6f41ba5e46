package wasmcore

import (
	"errors"
	"fmt"
)

// ErrConstWrite is returned by Global.Set when the target global was
// declared immutable. The interpreter surfaces this as a CONST_WRITE trap.
var ErrConstWrite = errors.New("write to const global")

// InstantiateErrorCode enumerates the ways linking a decoded Module against
// a set of host imports can fail.
type InstantiateErrorCode string

const (
	ErrImportNotFound    InstantiateErrorCode = "IMPORT_NOT_FOUND"
	ErrImportTypeMismatch InstantiateErrorCode = "IMPORT_TYPE_MISMATCH"
	ErrTableOOB          InstantiateErrorCode = "ELEMENT_OOB"
	ErrDataOOB           InstantiateErrorCode = "DATA_OOB"
	ErrStartTrap         InstantiateErrorCode = "START_TRAP"
)

// InstantiateError reports why instantiation of a Module failed, naming the
// offending import when relevant.
type InstantiateError struct {
	Code         InstantiateErrorCode
	ImportModule string
	ImportField  string
	Reason       string
	Cause        error
}

func (e *InstantiateError) Error() string {
	if e.ImportModule != "" || e.ImportField != "" {
		return fmt.Sprintf("instantiate: %s: import %q.%q: %s", e.Code, e.ImportModule, e.ImportField, e.Reason)
	}
	return fmt.Sprintf("instantiate: %s: %s", e.Code, e.Reason)
}

func (e *InstantiateError) Unwrap() error { return e.Cause }
