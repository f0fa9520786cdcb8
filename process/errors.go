package process

import "errors"

var (
	// ErrCompile wraps program text that failed to compile
	ErrCompile = errors.New("compile failed")

	// ErrTooManyProcs is returned when every process slot is in use
	ErrTooManyProcs = errors.New("too many processes")

	// ErrExit is returned by a Program to end its process
	ErrExit = errors.New("process exit")

	// ErrPanic wraps a panic recovered from a process
	ErrPanic = errors.New("process panicked")

	// ErrClosed is returned by Start and Spawn after Close
	ErrClosed = errors.New("supervisor closed")
)
