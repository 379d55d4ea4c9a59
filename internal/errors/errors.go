// Package errors defines the build-error taxonomy for the hpy compiler and a
// thread-safe collector used by directory builds to aggregate per-page
// failures without aborting the batch.
package errors

import (
	"errors"
	"fmt"
	"sync"
)

// ErrorKind classifies a build failure.
type ErrorKind int

const (
	// KindStructural marks missing required sections, missing placeholders,
	// and malformed component references.
	KindStructural ErrorKind = iota
	// KindResource marks filesystem failures: unreadable input, uncreatable
	// output, write errors.
	KindResource
	// KindReference marks script/stylesheet references that point outside
	// the source root, inside the static root, or at nonexistent files.
	KindReference
	// KindDepth marks component expansion exceeding the recursion bound.
	// Degrades to an inline marker; only surfaced when callers ask.
	KindDepth
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindResource:
		return "resource"
	case KindReference:
		return "reference"
	case KindDepth:
		return "depth"
	default:
		return "unknown"
	}
}

// BuildError is a typed failure tied to one source file.
type BuildError struct {
	File      string
	Component string
	Kind      ErrorKind
	Message   string
	Err       error
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.Component != "" {
		return fmt.Sprintf("%s: %s: <%s> %s", be.File, be.Kind, be.Component, be.Message)
	}
	return fmt.Sprintf("%s: %s: %s", be.File, be.Kind, be.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (be *BuildError) Unwrap() error {
	return be.Err
}

// Structural creates a structural validation error.
func Structural(file, format string, args ...interface{}) *BuildError {
	return &BuildError{File: file, Kind: KindStructural, Message: fmt.Sprintf(format, args...)}
}

// Resource creates a filesystem/IO error wrapping its cause.
func Resource(file string, err error, format string, args ...interface{}) *BuildError {
	return &BuildError{File: file, Kind: KindResource, Message: fmt.Sprintf(format, args...), Err: err}
}

// Reference creates a referential validation error.
func Reference(file, format string, args ...interface{}) *BuildError {
	return &BuildError{File: file, Kind: KindReference, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) a BuildError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Kind == kind
}

// ErrorCollector collects per-page build errors across a directory build.
type ErrorCollector struct {
	errs  []*BuildError
	mutex sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{errs: make([]*BuildError, 0)}
}

// Add records an error. Plain errors are wrapped as resource errors with an
// empty file so nothing is dropped.
func (ec *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	var be *BuildError
	if errors.As(err, &be) {
		ec.errs = append(ec.errs, be)
		return
	}
	ec.errs = append(ec.errs, &BuildError{Kind: KindResource, Message: err.Error(), Err: err})
}

// Errors returns a copy of all collected errors.
func (ec *ErrorCollector) Errors() []*BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]*BuildError, len(ec.errs))
	copy(result, ec.errs)
	return result
}

// ByFile returns the errors recorded for a specific file.
func (ec *ErrorCollector) ByFile(file string) []*BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var out []*BuildError
	for _, e := range ec.errs {
		if e.File == file {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of collected errors.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errs)
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	return ec.Count() > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errs = ec.errs[:0]
}
