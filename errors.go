package pdfxref

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPDF indicates the input has no %PDF- header.
	ErrNotPDF = errors.New("not a PDF file")

	// ErrNoStartxref indicates no startxref directive could be located.
	ErrNoStartxref = errors.New("missing startxref")

	// ErrCycle indicates the /Prev chain points back at a section already read.
	ErrCycle = errors.New("cross-reference sections form a loop")

	// ErrAttemptsExhausted indicates the chain walker gave up locating sections.
	ErrAttemptsExhausted = errors.New("too many failed attempts to locate a cross-reference section")

	// ErrNoObjects indicates the declared tables were unusable and a full
	// scan of the file found no objects either.
	ErrNoObjects = errors.New("no objects found")
)

// errNoSection reports that the bytes at an offset are not the start of a
// cross-reference section at all, as opposed to a corrupt one.
var errNoSection = errors.New("no cross-reference section")

// A MalformedError describes a structure that was found but could not be used.
type MalformedError struct {
	Op     string // what was being read, e.g. "xref table"
	Offset int64  // file offset the structure starts at
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed PDF: %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func malformed(op string, off int64, format string, args ...any) error {
	return &MalformedError{Op: op, Offset: off, Err: fmt.Errorf(format, args...)}
}

// catch converts a panic raised by the tokenizer into an error.
func catch(op string, off int64, err *error) {
	if rec := recover(); rec != nil {
		if e, ok := rec.(error); ok {
			*err = &MalformedError{Op: op, Offset: off, Err: e}
			return
		}
		*err = malformed(op, off, "%v", rec)
	}
}
