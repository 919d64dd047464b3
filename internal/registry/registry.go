// Package registry manages the lifecycle of storage backend modules:
// discovery, loading, capability resolution, reinitialization, and dispatch.
// It is the process-wide gate every backend call goes through.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/pkg/backend"
)

// Status describes a module slot's load state.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoaded   Status = "loaded"
	StatusFailed   Status = "failed"
)

// LoadState is the externally visible state of one backend kind.
type LoadState struct {
	Status    Status
	Err       error          // load failure reason, when Status == StatusFailed
	Functions []backend.Func // capable functions, when Status == StatusLoaded
}

// Loader produces a backend module for a spec. The default loader (see the
// modules package) resolves the backing tool and constructs the compiled-in
// implementation; tests substitute fakes.
type Loader func(spec backend.Spec) (backend.Backend, error)

// handle is the runtime record for one loaded (or failed) module.
type handle struct {
	backend backend.Backend
	caps    map[backend.Func]bool
	table   map[backend.Func]any
	spec    backend.Spec
	err     error
}

// Registry maps the fixed set of backend kinds to loaded modules and their
// resolved capability tables.
//
// The table is read on every backend call and mutated only during
// Init/TryInit/Reinit, so it is guarded by a read-mostly lock. The lock does
// NOT protect in-flight calls through a module being reloaded: callers must
// serialize Reinit(reload=true) against concurrent use of the affected
// backends themselves.
type Registry struct {
	mu      sync.RWMutex
	loader  Loader
	handles map[backend.Kind]*handle
	logger  *zap.Logger
}

// New creates a Registry that loads modules through loader.
func New(loader Loader, logger *zap.Logger) *Registry {
	return &Registry{
		loader:  loader,
		handles: make(map[backend.Kind]*handle),
		logger:  logger,
	}
}

// Init loads every backend named in specs and resolves its capabilities.
// If any required spec fails to load, Init fails with a *PluginsFailedError
// aggregating every failure. If specs is empty, Init attempts to load every
// known kind best-effort: individual failures are recorded but not fatal.
//
// Loading a kind that is already loaded is a no-op success.
func (r *Registry) Init(specs []backend.Spec) error {
	return r.reinit(specs, false)
}

// TryInit is Init that never fails: it performs the same discovery and
// loading, then reports a per-kind state map so the caller can decide what
// to do with partial availability.
func (r *Registry) TryInit(specs []backend.Spec) map[backend.Kind]LoadState {
	// Best-effort by construction; the aggregate error is deliberately
	// discarded in favor of the state map.
	_ = r.reinit(specs, false)
	return r.States()
}

// Reinit re-runs discovery and loading. With reload=true, already-loaded
// modules named in specs are unloaded and loaded fresh (two phases: the old
// handle is dropped, then a new one is built and swapped in); with
// reload=false, already-loaded modules are left untouched and only newly
// requested kinds are loaded.
//
// Not safe to call concurrently with in-flight calls through the modules
// being reloaded; callers must serialize externally.
func (r *Registry) Reinit(specs []backend.Spec, reload bool) error {
	return r.reinit(specs, reload)
}

func (r *Registry) reinit(specs []backend.Spec, reload bool) error {
	requested, unknown := orderSpecs(specs)
	bestEffort := len(specs) == 0

	r.mu.Lock()
	defer r.mu.Unlock()

	var failures []LoadFailure
	for _, spec := range requested {
		if err := r.load(spec, reload); err != nil {
			failures = append(failures, LoadFailure{Kind: spec.Kind, Err: err})
		}
	}
	for _, spec := range unknown {
		failures = append(failures, LoadFailure{
			Kind: spec.Kind,
			Err:  fmt.Errorf("unknown backend kind %q", spec.Kind),
		})
	}

	if len(failures) > 0 && !bestEffort {
		return &PluginsFailedError{Failures: failures}
	}
	return nil
}

// orderSpecs arranges the requested specs in the fixed kind enumeration
// order so diagnostics are stable across runs regardless of request order.
// Specs naming unknown kinds are returned separately. An empty request
// expands to every known kind at its default location. If a kind is named
// more than once, the first spec wins.
func orderSpecs(specs []backend.Spec) (ordered, unknown []backend.Spec) {
	if len(specs) == 0 {
		for _, kind := range backend.Kinds() {
			ordered = append(ordered, backend.Spec{Kind: kind})
		}
		return ordered, nil
	}

	byKind := make(map[backend.Kind]backend.Spec)
	for _, spec := range specs {
		if !spec.Kind.Valid() {
			unknown = append(unknown, spec)
			continue
		}
		if _, ok := byKind[spec.Kind]; !ok {
			byKind[spec.Kind] = spec
		}
	}
	for _, kind := range backend.Kinds() {
		if spec, ok := byKind[kind]; ok {
			ordered = append(ordered, spec)
		}
	}
	return ordered, unknown
}

// load brings one kind into a loaded, capability-resolved state. Caller
// holds the write lock.
func (r *Registry) load(spec backend.Spec, reload bool) error {
	if h, ok := r.handles[spec.Kind]; ok && h.err == nil {
		if !reload {
			return nil // already loaded, idempotent
		}
		r.unload(spec.Kind, h)
	}

	b, err := r.loader(spec)
	if err != nil {
		err = fmt.Errorf("load %s backend: %w", spec.Kind, err)
		r.handles[spec.Kind] = &handle{spec: spec, err: err}
		r.logger.Warn("backend failed to load",
			zap.String("kind", string(spec.Kind)),
			zap.Error(err),
		)
		return err
	}

	h, err := resolve(b, spec)
	if err != nil {
		r.handles[spec.Kind] = &handle{spec: spec, err: err}
		r.logger.Warn("backend failed to load",
			zap.String("kind", string(spec.Kind)),
			zap.Error(err),
		)
		return err
	}

	r.handles[spec.Kind] = h
	r.logger.Info("backend loaded",
		zap.String("kind", string(spec.Kind)),
		zap.Int("functions", len(h.caps)),
	)
	return nil
}

// resolve computes a module's capability table: the intersection of its
// declared function list and its resolvable call table entries. The table
// is computed once here and cached on the handle; it is never re-queried
// until the next reload. A module missing a declared, non-baseline entry
// point is "loaded, but missing a capability"; a module missing a baseline
// entry point is invalid and fails the load.
func resolve(b backend.Backend, spec backend.Spec) (*handle, error) {
	table := b.Table()

	if bl, ok := b.(backend.Baseliner); ok {
		for _, fn := range bl.Baseline() {
			if table[fn] == nil {
				return nil, fmt.Errorf("module %s is missing mandatory entry point %q", spec.Kind, fn)
			}
		}
	}

	caps := make(map[backend.Func]bool)
	for _, fn := range b.Functions() {
		if table[fn] != nil {
			caps[fn] = true
		}
	}

	return &handle{backend: b, caps: caps, table: table, spec: spec}, nil
}

// unload drops a handle prior to a reload. Caller holds the write lock.
func (r *Registry) unload(kind backend.Kind, h *handle) {
	if closer, ok := h.backend.(backend.Closer); ok {
		if err := closer.Close(); err != nil {
			r.logger.Warn("backend close failed",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
	delete(r.handles, kind)
}

// IsInitialized reports whether a prior Init/TryInit/Reinit completed and
// left at least one backend loaded.
func (r *Registry) IsInitialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		if h.err == nil {
			return true
		}
	}
	return false
}

// Capability reports whether the loaded module for kind implements fn.
// Callers check this before dispatching optional operations.
func (r *Registry) Capability(kind backend.Kind, fn backend.Func) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[kind]
	return ok && h.err == nil && h.caps[fn]
}

// Lookup returns the resolved entry point for kind/fn, failing fast with
// ErrNotLoaded or ErrCapabilityUnavailable. It never returns an unresolved
// call target.
func (r *Registry) Lookup(kind backend.Kind, fn backend.Func) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[kind]
	if !ok || h.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNotLoaded)
	}
	if !h.caps[fn] {
		return nil, fmt.Errorf("%s.%s: %w", kind, fn, ErrCapabilityUnavailable)
	}
	return h.table[fn], nil
}

// Backend returns the loaded module for kind.
func (r *Registry) Backend(kind backend.Kind) (backend.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[kind]
	if !ok || h.err != nil {
		return nil, fmt.Errorf("%s: %w", kind, ErrNotLoaded)
	}
	return h.backend, nil
}

// States returns the load state of every known kind. Kinds never requested
// report StatusUnloaded.
func (r *Registry) States() map[backend.Kind]LoadState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[backend.Kind]LoadState, len(backend.Kinds()))
	for _, kind := range backend.Kinds() {
		h, ok := r.handles[kind]
		switch {
		case !ok:
			states[kind] = LoadState{Status: StatusUnloaded}
		case h.err != nil:
			states[kind] = LoadState{Status: StatusFailed, Err: h.err}
		default:
			fns := make([]backend.Func, 0, len(h.caps))
			for fn := range h.caps {
				fns = append(fns, fn)
			}
			states[kind] = LoadState{Status: StatusLoaded, Functions: fns}
		}
	}
	return states
}

// Entry fetches the entry point for kind/fn from the registry and asserts
// it to the expected call signature. The two-step failure mode mirrors the
// contract: an absent capability is ErrCapabilityUnavailable, a signature
// mismatch is a programming error surfaced as such.
func Entry[T any](r *Registry, kind backend.Kind, fn backend.Func) (T, error) {
	var zero T
	v, err := r.Lookup(kind, fn)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s.%s: entry point has type %T, not %T", kind, fn, v, zero)
	}
	return typed, nil
}
