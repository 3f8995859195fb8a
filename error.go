package blockfs

import (
	"fmt"

	"github.com/pkg/errors"
)

// FsError is a recoverable failure. The caller gets one of the exported
// values below and decides what to do; the engine state stays valid.
type FsError struct {
	Code int
	Msg  string
}

func (e FsError) Error() string {
	return e.Msg
}

func (e FsError) GetCode() int {
	return e.Code
}

func NewFsError(code int, msg string) FsError {
	return FsError{
		Code: code,
		Msg:  msg,
	}
}

var ErrFileNotFound = NewFsError(1, "file not found")
var ErrTooManyOpen = NewFsError(2, "too many open files")
var ErrBadDescriptor = NewFsError(3, "bad file descriptor")
var ErrBadCursor = NewFsError(4, "cursor may not be negative")
var ErrBadWhence = NewFsError(5, "bad whence")
var ErrNoSpace = NewFsError(6, "no space left on device")
var ErrNoInode = NewFsError(7, "inode table full")
var ErrNameTooLong = NewFsError(8, "file name too long")
var ErrNotAllocated = NewFsError(9, "block is not allocated")
var ErrFileBusy = NewFsError(10, "file is open")
var ErrDiskTooSmall = NewFsError(11, "disk too small for geometry")
var ErrInvalidStructBytes = NewFsError(12, "invalid struct bytes")

// FatalError is the unrecoverable tier: the backing store cannot be created
// or found, or a structure read back from disk is corrupt. It is bubbled to
// the top-level caller, which terminates. Never folded into FsError.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalErr(op string, cause error, format string, args ...interface{}) *FatalError {
	return &FatalError{
		Op:  op,
		Err: errors.Wrapf(cause, format, args...),
	}
}

// IsFatal reports whether err belongs to the unrecoverable tier.
func IsFatal(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}
