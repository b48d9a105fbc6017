package asm

import (
	"errors"
	"fmt"
)

// Assembly failure kinds. Every error returned by Assemble wraps exactly one
// of these, so callers can classify with errors.Is.
var (
	ErrLex              = errors.New("lex error")
	ErrUnknownMnemonic  = errors.New("unknown mnemonic")
	ErrBadRegister      = errors.New("bad register")
	ErrBadImmediate     = errors.New("bad immediate")
	ErrUnknownLabel     = errors.New("unknown label")
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrInternalEncoding = errors.New("internal encoding error")
)

// Error reports an assembly failure at a source line. Assembly is
// all-or-nothing: the first Error aborts the whole translation.
type Error struct {
	Line   int    // 1-based line number in the original source text
	Kind   error  // one of the Err* sentinels
	Detail string // the offending token or a short reason
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Kind)
	}
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

func errAt(line int, kind error, format string, args ...any) *Error {
	return &Error{Line: line, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
