package services

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("parse error")

// ParseError reports a malformed backup or spreadsheet file. Nothing from
// the file has been applied when it is returned.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed %s", e.Source)
	}
	return fmt.Sprintf("malformed %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func parseErr(source string, err error) error {
	return &ParseError{Source: source, Err: err}
}
