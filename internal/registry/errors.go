package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jfarrand/diskwright/pkg/backend"
)

// ErrNotLoaded reports a call against a backend kind that is not currently
// loaded.
var ErrNotLoaded = errors.New("backend not loaded")

// ErrCapabilityUnavailable reports an operation that the loaded module does
// not implement. The frontend fails fast on this; it never calls through an
// unresolved entry point.
var ErrCapabilityUnavailable = errors.New("operation not supported by loaded backend")

// LoadFailure pairs a backend kind with the reason it failed to load.
type LoadFailure struct {
	Kind backend.Kind
	Err  error
}

// PluginsFailedError aggregates every required-backend load failure from one
// Init or Reinit call, so the caller sees all problems at once rather than
// just the first. Failures keep discovery order.
type PluginsFailedError struct {
	Failures []LoadFailure
}

func (e *PluginsFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Kind, f.Err))
	}
	return fmt.Sprintf("failed to load required backends: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the individual causes to errors.Is / errors.As.
func (e *PluginsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
