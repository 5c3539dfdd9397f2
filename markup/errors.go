package markup

import "fmt"

// ErrorKind classifies compile failures.
type ErrorKind string

const (
	// UnknownBinding marks a path the schema and data do not know, or a
	// required binding absent from the data context.
	UnknownBinding ErrorKind = "unknown_binding"
	// MalformedExpression marks syntax errors: unclosed blocks, stray
	// terminators, empty or unparseable expressions, unknown helpers.
	MalformedExpression ErrorKind = "malformed_expression"
	// HelperArityMismatch marks a helper call with the wrong argument count.
	HelperArityMismatch ErrorKind = "helper_arity_mismatch"
)

// CompileError identifies the offending expression path of a failed
// compile. Unresolved bindings always fail; they are never emitted as
// empty output.
type CompileError struct {
	Kind ErrorKind
	Path string
	Msg  string
}

func (e *CompileError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s at %q: %s", e.Kind, e.Path, e.Msg)
}
