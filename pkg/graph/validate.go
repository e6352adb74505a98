package graph

import (
	"errors"
	"fmt"

	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
)

// ValidationError represents a single invariant violation.
type ValidationError struct {
	Ref    string // Node or edge id
	Reason string // Human-readable reason for failure
}

func (e *ValidationError) Error() string {
	if e.Ref == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Ref, e.Reason)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}

// Validate checks the structural invariants of g and returns every violation
// found as an *AggregateError, or nil.
func Validate(g domain.FlowGraph) error {
	var errs []error
	fail := func(ref, format string, args ...any) {
		errs = append(errs, &ValidationError{Ref: ref, Reason: fmt.Sprintf(format, args...)})
	}

	if len(g.Nodes) == 0 {
		fail("", "graph has no nodes")
		return &AggregateError{Errors: errs}
	}

	ids := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		if ids[n.ID] {
			fail(n.ID, "duplicate node id")
		}
		ids[n.ID] = true
		if n.ID != domain.NodeID(i) {
			fail(n.ID, "id does not match position %d (want %s)", i, domain.NodeID(i))
		}
		if !n.Kind.Valid() {
			fail(n.ID, "unknown kind %q", n.Kind)
		}
	}

	parents := make(map[string]int, len(g.Edges))
	for _, e := range g.Edges {
		ref := e.ID
		if ref == "" {
			ref = domain.EdgeID(e.Source, e.Target)
		}
		if !ids[e.Source] {
			fail(ref, "source %q does not exist", e.Source)
		}
		if !ids[e.Target] {
			fail(ref, "target %q does not exist", e.Target)
		}
		if e.Source == e.Target {
			fail(ref, "edge points to its own source")
		}
		parents[e.Target]++
	}
	for _, n := range g.Nodes {
		if parents[n.ID] > 1 {
			fail(n.ID, "%d incoming edges", parents[n.ID])
		}
	}

	roots := Roots(g)
	switch {
	case len(roots) == 0:
		fail("", "graph has no root")
	case len(roots) > 1:
		fail("", "graph has %d roots %v", len(roots), roots)
	}
	if len(roots) > 0 {
		reached := Reachable(g, roots[0])
		if root, _ := g.Node(roots[0]); root.Kind != domain.KindResponse {
			fail(root.ID, "root must be a %s node", domain.KindResponse)
		}
		for _, n := range g.Nodes {
			if !reached[n.ID] && len(roots) == 1 {
				fail(n.ID, "not reachable from root %s", roots[0])
			}
		}
	}

	for _, n := range g.Nodes {
		target := n.Payload.LoopTargetID
		switch {
		case target == "":
		case target == n.ID:
			fail(n.ID, "loops to itself")
		case !ids[target]:
			fail(n.ID, "loop target %q does not exist", target)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
