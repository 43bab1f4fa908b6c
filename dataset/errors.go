package dataset

import "fmt"

// OutOfBoundsError is returned when a read window falls outside a Grid's
// extent. The caller corrects the request; nothing was read.
type OutOfBoundsError struct {
	Origin []int
	Shape  []int
	Counts []int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("read window origin %v shape %v exceeds grid extent %v", e.Origin, e.Shape, e.Counts)
}

// BackendUnavailableError wraps a backend failure to access the underlying
// resource. It is surfaced as-is, never silently retried: a missing file or
// a revoked credential is not expected to self-heal.
type BackendUnavailableError struct {
	Resource string
	Err      error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend resource %s unavailable: %v", e.Resource, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// IncompatibleGridsError reports an extent or spatial reference mismatch
// between grids combined into a derivation. Raised at construction time;
// the engine never resamples implicitly.
type IncompatibleGridsError struct {
	Reason string
}

func (e *IncompatibleGridsError) Error() string {
	return fmt.Sprintf("incompatible grids: %s", e.Reason)
}

// NotFoundError reports a collection identifier that resolved to nothing.
type NotFoundError struct {
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no member found for identifier %q", e.Identifier)
}

// AmbiguousIdentifierError reports an identifier or filter that matched
// more than one member when the caller asked for exactly one.
type AmbiguousIdentifierError struct {
	Identifier string
	Matches    []string
}

func (e *AmbiguousIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q matches %d members: %v", e.Identifier, len(e.Matches), e.Matches)
}

// CyclicCollectionError reports a reference cycle in the backing storage
// encountered during collection traversal.
type CyclicCollectionError struct {
	Path string
}

func (e *CyclicCollectionError) Error() string {
	return fmt.Sprintf("cycle detected in collection storage at %s", e.Path)
}
