package domain

import (
	"errors"
	"strings"
)

// ErrorKind classifies a diagnostic.
type ErrorKind uint8

const (
	// ResolutionError means a request could not be mapped to a module identity.
	ResolutionError ErrorKind = iota
	// BuildError means a module failed to parse or transform.
	BuildError
	// GraphError means an internal graph invariant was violated.
	GraphError
	// SplitConstraintUnsatisfiable means chunk splitting could not honor size bounds.
	SplitConstraintUnsatisfiable
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ResolutionError:
		return "ResolutionError"
	case BuildError:
		return "BuildError"
	case GraphError:
		return "GraphError"
	case SplitConstraintUnsatisfiable:
		return "SplitConstraintUnsatisfiable"
	default:
		return "UnknownError"
	}
}

// Severity tells whether a diagnostic fails the run.
type Severity uint8

const (
	// SeverityError diagnostics are counted as compilation errors.
	SeverityError Severity = iota
	// SeverityWarning diagnostics are reported but never fail a run.
	SeverityWarning
)

// Diagnostic is an error or warning attached to a module or chunk.
type Diagnostic struct {
	Kind     ErrorKind
	Severity Severity
	// Module is the identity of the offending module, if any.
	Module  Identifier
	Request string
	Err     error
}

// Error implements the error interface.
func (d Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Kind.String())
	if !d.Module.IsZero() {
		b.WriteString(" in ")
		b.WriteString(d.Module.String())
	}
	if d.Request != "" {
		b.WriteString(" (request \"")
		b.WriteString(d.Request)
		b.WriteString("\")")
	}
	if d.Err != nil {
		b.WriteString(": ")
		b.WriteString(d.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (d Diagnostic) Unwrap() error {
	return d.Err
}

// JoinDiagnostics joins diagnostics into a single error, nil when empty.
func JoinDiagnostics(diags []Diagnostic) error {
	errs := make([]error, 0, len(diags))
	for _, d := range diags {
		errs = append(errs, d)
	}
	return errors.Join(errs...)
}
