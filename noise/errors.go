package noise

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrNoOutput means the graph has no output node.
	ErrNoOutput = errors.New("noise: graph has no output node")

	// ErrMultipleOutputs means the graph has more than one output node.
	ErrMultipleOutputs = errors.New("noise: graph has more than one output node")

	// ErrUnknownKind means a node kind is not recognized.
	ErrUnknownKind = errors.New("noise: unknown node kind")

	// ErrDuplicateID means two nodes share an id.
	ErrDuplicateID = errors.New("noise: duplicate node id")

	// ErrInvalidDocument means a graph document failed schema validation.
	ErrInvalidDocument = errors.New("noise: invalid graph document")
)

// CompileError is implemented by every error Compile returns. Node reports
// the node the error is attached to, or "" for graph-level errors.
type CompileError interface {
	error
	Node() NodeID
}

// CyclicGraphError reports a cycle. Path lists the nodes on the cycle, with
// the first node repeated at the end.
type CyclicGraphError struct {
	Path []NodeID
}

func (e *CyclicGraphError) Error() string {
	parts := make([]string, len(e.Path))
	for i, id := range e.Path {
		parts[i] = string(id)
	}
	return "noise: cycle detected: " + strings.Join(parts, " -> ")
}

// Node returns the first node of the cycle.
func (e *CyclicGraphError) Node() NodeID {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[0]
}

// DanglingReferenceError reports an input that names a node not in the
// graph.
type DanglingReferenceError struct {
	From    NodeID
	Input   string
	Missing NodeID
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("noise: node %q input %q references undefined node %q", e.From, e.Input, e.Missing)
}

func (e *DanglingReferenceError) Node() NodeID { return e.From }

// TypeMismatchError reports an input fed a field of the wrong shape.
type TypeMismatchError struct {
	At    NodeID
	Input string
	Want  Shape
	Got   Shape
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("noise: node %q input %q wants a %v field, got %v", e.At, e.Input, e.Want, e.Got)
}

func (e *TypeMismatchError) Node() NodeID { return e.At }

// InvalidNodeError reports a structural problem: duplicate ids, unknown
// kinds, bad parameters, missing or unexpected inputs, or a wrong number of
// output nodes. Err holds the underlying cause.
type InvalidNodeError struct {
	At     NodeID
	Reason string
	Err    error
}

func (e *InvalidNodeError) Error() string {
	var b strings.Builder
	b.WriteString("noise: ")
	if e.At != "" {
		fmt.Fprintf(&b, "node %q: ", e.At)
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *InvalidNodeError) Node() NodeID { return e.At }

func (e *InvalidNodeError) Unwrap() error { return e.Err }

// PreconditionViolation is the panic value for programming errors such as
// evaluating a nil plan, passing a short output buffer or extracting a
// surface from an unpopulated field. It is never returned as an error.
type PreconditionViolation struct {
	Op     string
	Reason string
}

func (p *PreconditionViolation) Error() string {
	return fmt.Sprintf("precondition violated in %s: %s", p.Op, p.Reason)
}

// Violate panics with a PreconditionViolation.
func Violate(op, format string, args ...any) {
	panic(&PreconditionViolation{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// AsPreconditionViolation reports whether a recovered panic value is a
// PreconditionViolation.
func AsPreconditionViolation(v any) (*PreconditionViolation, bool) {
	switch p := v.(type) {
	case *PreconditionViolation:
		return p, true
	case error:
		var pv *PreconditionViolation
		if errors.As(p, &pv) {
			return pv, true
		}
	}
	return nil, false
}
