// Package compilerr defines the error taxonomy shared by every stage of the
// front-end: parsing, schema validation, semantic compilation, and macro-edge
// handling. Every user-facing error returned by gqlcompile is one of the
// types defined here, distinguishable with errors.As and errors.Is.
package compilerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is(err, compilerr.Compilation) rather than a
// type switch when only the broad category matters.
var (
	Parse           = errors.New("gqlcompile: parse error")
	Validation      = errors.New("gqlcompile: validation error")
	Compilation     = errors.New("gqlcompile: compilation error")
	InvalidMacro    = errors.New("gqlcompile: invalid macro error")
	InvalidArgument = errors.New("gqlcompile: invalid argument error")
)

// ParseError indicates the surface query text could not be parsed into an
// abstract syntax tree.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("gqlcompile: parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Is(target error) bool { return target == Parse }

// NewParseError wraps a lower-level parse failure (typically a
// gqlerror.List from the parser) as a ParseError.
func NewParseError(err error) *ParseError { return &ParseError{Err: err} }

// ValidationError indicates the query failed schema-structural validation,
// including the stricter directive-declaration check described in §4.5.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gqlcompile: validation error: %v", e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == Validation }

// NewValidationError wraps an underlying validation failure.
func NewValidationError(err error) *ValidationError { return &ValidationError{Err: err} }

// CompilationError indicates a semantic error discovered while applying
// directive semantics or filter-operator rules: duplicated names, illegal
// directive combinations, wrong field kind for an operator, type mismatches,
// missing outputs, filters on unions, and so on.
type CompilationError struct {
	// Location, if non-empty, names the offending position in the query;
	// formatted into the message when present.
	Location string
	Msg      string
}

func (e *CompilationError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("gqlcompile: compilation error at %s: %s", e.Location, e.Msg)
	}
	return fmt.Sprintf("gqlcompile: compilation error: %s", e.Msg)
}
func (e *CompilationError) Is(target error) bool { return target == Compilation }

// NewCompilationError returns a CompilationError with a formatted message.
func NewCompilationError(location, format string, args ...any) *CompilationError {
	return &CompilationError{Location: location, Msg: fmt.Sprintf(format, args...)}
}

// InvalidMacroError indicates a macro-edge definition failed one of the
// registration rules in §4.4.1.
type InvalidMacroError struct {
	Msg string
}

func (e *InvalidMacroError) Error() string { return fmt.Sprintf("gqlcompile: invalid macro: %s", e.Msg) }
func (e *InvalidMacroError) Is(target error) bool { return target == InvalidMacro }

// NewInvalidMacroError returns a InvalidMacroError with a formatted message.
func NewInvalidMacroError(format string, args ...any) *InvalidMacroError {
	return &InvalidMacroError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError indicates an argument supplied during macro
// registration or query compilation had the wrong GraphQL type.
type InvalidArgumentError struct {
	Argument string
	Msg      string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("gqlcompile: invalid argument %q: %s", e.Argument, e.Msg)
}
func (e *InvalidArgumentError) Is(target error) bool { return target == InvalidArgument }

// NewInvalidArgumentError returns an InvalidArgumentError for the named argument.
func NewInvalidArgumentError(argument, format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Argument: argument, Msg: fmt.Sprintf(format, args...)}
}

// InternalError marks a condition that should be unreachable if the rest of
// the compiler is correct: a bug, not a user error. Callers should never
// need to branch on InternalError specifically; it exists to distinguish
// assertion failures from the compiler's own documented error kinds.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return fmt.Sprintf("gqlcompile: internal error: %s", e.Msg) }

// NewInternalError returns an InternalError with a formatted message.
func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// IsCompilationError returns true if err is (or wraps) a CompilationError.
func IsCompilationError(err error) bool {
	var e *CompilationError
	return errors.As(err, &e)
}

// IsInvalidMacroError returns true if err is (or wraps) an InvalidMacroError.
func IsInvalidMacroError(err error) bool {
	var e *InvalidMacroError
	return errors.As(err, &e)
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
