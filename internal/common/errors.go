package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by every stage of an evaluation run. Callers match them with errors.Is.
var (
	ErrParse         = errors.New("parse error")
	ErrConfiguration = errors.New("configuration error")
	ErrStream        = errors.New("stream error")
	ErrInvariant     = errors.New("invariant violation")
	ErrCorruptModel  = errors.New("corrupt model")
)

// ParseError reports an unparsable model literal or input field.
type ParseError struct {
	Source string // "model", "tsv", "svm"
	Line   int    // 1-based line number, 0 when unknown
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: cannot parse %s %q", e.Source, e.Field, e.Value)
	if e.Line > 0 {
		msg = fmt.Sprintf("%s line %d: cannot parse %s %q", e.Source, e.Line, e.Field, e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// Configurationf builds an error of kind ErrConfiguration.
func Configurationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Invariantf builds an error of kind ErrInvariant.
func Invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

// Corruptf builds an error of kind ErrCorruptModel.
func Corruptf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorruptModel, fmt.Sprintf(format, args...))
}
