package binfmt

import (
	"errors"
	"fmt"
)

// Error kinds. Every FormatError carries one of these as its Kind, so
// callers test with errors.Is.
var (
	ErrTruncated            = errors.New("truncated")
	ErrTruncatedLoadCommand = fmt.Errorf("%w load command", ErrTruncated)
	ErrUnknownMagic         = errors.New("unknown magic")
	ErrUnknownCPUType       = errors.New("unknown cpu type")
	ErrUnknownFileType      = errors.New("unknown file type")
	ErrUnknownLoadCommand   = errors.New("unknown load command")
	ErrInvalidAlignment     = errors.New("invalid alignment")
	ErrArchOutOfBounds      = errors.New("arch out of bounds")
	ErrOutOfBounds          = errors.New("range out of bounds")
	ErrStructuralMismatch   = errors.New("structural mismatch")
)

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError struct {
	Kind error
	Off  int64
	Msg  string
	Val  interface{}
}

func (e *FormatError) Error() string {
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Val != nil {
		msg += fmt.Sprintf(" '%v'", e.Val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.Off)
	return msg
}

func (e *FormatError) Unwrap() error { return e.Kind }

// Errorf returns a FormatError of the given kind at byte offset off.
func Errorf(kind error, off int64, val interface{}, format string, args ...interface{}) *FormatError {
	return &FormatError{Kind: kind, Off: off, Msg: fmt.Sprintf(format, args...), Val: val}
}
