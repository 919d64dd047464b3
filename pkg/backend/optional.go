package backend

import "context"

// Versioner is implemented by backends that can report the version of the
// external tool backing them.
type Versioner interface {
	ToolVersion(ctx context.Context) (string, error)
}

// Closer is implemented by backends that hold resources which must be
// released when the module is unloaded or replaced during a reload.
type Closer interface {
	Close() error
}

// Baseliner is implemented by backends with a mandatory function baseline:
// entry points that must resolve for the module to be considered valid at
// all. A baseline function missing from the call table is a load failure,
// not a missing capability.
type Baseliner interface {
	Baseline() []Func
}
