package script

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax marks errors found while compiling program text
	ErrSyntax = errors.New("syntax error")

	// ErrRuntime marks errors raised while a program runs
	ErrRuntime = errors.New("runtime error")

	// ErrExit is returned by Run when the program executes exit
	ErrExit = errors.New("exit")

	// ErrAssert marks a failed assert statement
	ErrAssert = errors.New("assertion failed")
)

// Error locates a syntax or runtime error in the program text.
type Error struct {
	Kind error
	Line int
	Col  int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Col > 0 {
		loc = fmt.Sprintf("line %d:%d", e.Line, e.Col)
	}
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("%v: %s: %v", e.Kind, loc, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %s: %v", e.Kind, loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, loc, e.Msg)
}

// Is matches the error kind. A failed assert is also a runtime error.
func (e *Error) Is(target error) bool {
	return target == e.Kind || (e.Kind == ErrAssert && target == ErrRuntime)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func syntaxErrorf(pos Position, format string, args ...any) error {
	return &Error{Kind: ErrSyntax, Line: pos.Line, Col: pos.Column, Msg: fmt.Sprintf(format, args...)}
}

func runtimeError(line int, err error, format string, args ...any) error {
	return &Error{Kind: ErrRuntime, Line: line, Msg: fmt.Sprintf(format, args...), Err: err}
}

func runtimeErrorf(line int, format string, args ...any) error {
	return runtimeError(line, nil, format, args...)
}
