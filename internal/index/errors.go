// Package index implements the index.yaml document model (component C), the
// line-oriented streaming rewriter (component D), and the full-load
// updater (component F) used for single-archive pushes.
package index

import "fmt"

// AlreadyPresentError reports an add colliding with an existing
// (name, version) entry whose digest differs from the incoming archive.
type AlreadyPresentError struct {
	Name    string
	Version string
}

func (e *AlreadyPresentError) Error() string {
	return fmt.Sprintf("index: %s-%s already present", e.Name, e.Version)
}

// MissingError reports an operation against an index.yaml that does not
// exist yet (e.g. a delete on an empty repository).
type MissingError struct{}

func (e *MissingError) Error() string { return "index: index.yaml is missing" }

// NotFoundError reports a delete targeting a (name, version) absent from
// the index.
type NotFoundError struct {
	Name    string
	Version string // empty means "whole chart name"
}

func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("index: chart %q not found", e.Name)
	}
	return fmt.Sprintf("index: %s-%s not found", e.Name, e.Version)
}

// IsAlreadyPresent reports whether err is an AlreadyPresentError.
func IsAlreadyPresent(err error) bool {
	_, ok := err.(*AlreadyPresentError)
	return ok
}

// IsMissing reports whether err is a MissingError.
func IsMissing(err error) bool {
	_, ok := err.(*MissingError)
	return ok
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
