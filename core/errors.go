package core

import "errors"

// Protocol misuse errors
var (
	ErrInvalidProc   = errors.New("invalid proc")
	ErrAlreadyParked = errors.New("proc is already parked on a channel")
	ErrNameTaken     = errors.New("proc name already registered")
	ErrProcNotFound  = errors.New("proc not found")
)

// Payload errors
var (
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrDecode           = errors.New("payload decode error")
)
