package source

import (
	"fmt"
	"strconv"

	"vareview/internal/services"
)

// ParseError reports a structural failure in one input file. It matches
// services.ErrValidation under errors.Is.
type ParseError struct {
	File   string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.File + ": "
	if e.Line > 0 {
		msg += "line " + strconv.Itoa(e.Line) + ": "
	}
	msg += e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrValidation}
	}
	return []error{services.ErrValidation, e.Err}
}

// Errorf builds a ParseError for the named file.
func Errorf(file string, line int, format string, args ...any) *ParseError {
	return &ParseError{File: file, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// WrapError builds a ParseError that keeps cause in its chain.
func WrapError(file, reason string, cause error) *ParseError {
	return &ParseError{File: file, Reason: reason, Err: cause}
}

// LineWarning formats a recoverable record-level problem.
func LineWarning(line int, format string, args ...any) string {
	return "line " + strconv.Itoa(line) + ": " + fmt.Sprintf(format, args...)
}
