package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/pkg/backend"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// fakeBackend is a minimal module with a configurable call table.
type fakeBackend struct {
	kind     backend.Kind
	declared []backend.Func
	table    map[backend.Func]any
	baseline []backend.Func
	closed   bool
}

func (f *fakeBackend) Kind() backend.Kind          { return f.kind }
func (f *fakeBackend) Functions() []backend.Func   { return f.declared }
func (f *fakeBackend) Table() map[backend.Func]any { return f.table }
func (f *fakeBackend) Baseline() []backend.Func    { return f.baseline }
func (f *fakeBackend) Close() error                { f.closed = true; return nil }

// fakeLoader fabricates backends per kind; kinds in fail refuse to load.
type fakeLoader struct {
	fail    map[backend.Kind]error
	loads   []backend.Spec
	created map[backend.Kind]*fakeBackend
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		fail:    make(map[backend.Kind]error),
		created: make(map[backend.Kind]*fakeBackend),
	}
}

func (l *fakeLoader) load(spec backend.Spec) (backend.Backend, error) {
	l.loads = append(l.loads, spec)
	if err := l.fail[spec.Kind]; err != nil {
		return nil, err
	}
	noop := func(context.Context) error { return nil }
	b := &fakeBackend{
		kind:     spec.Kind,
		declared: []backend.Func{"probe", "list"},
		table:    map[backend.Func]any{"probe": noop, "list": noop},
	}
	l.created[spec.Kind] = b
	return b, nil
}

func TestInitAllRequiredLoaded(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())

	specs := []backend.Spec{{Kind: backend.LVM}, {Kind: backend.Btrfs}}
	if err := r.Init(specs); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !r.IsInitialized() {
		t.Error("IsInitialized() = false after successful Init")
	}

	states := r.States()
	if states[backend.LVM].Status != StatusLoaded {
		t.Errorf("lvm status = %s, want loaded", states[backend.LVM].Status)
	}
	if states[backend.Crypto].Status != StatusUnloaded {
		t.Errorf("crypto status = %s, want unloaded", states[backend.Crypto].Status)
	}
}

func TestInitAggregatesEveryFailure(t *testing.T) {
	loader := newFakeLoader()
	loader.fail[backend.LVM] = errors.New("lvm tool missing")
	loader.fail[backend.Swap] = errors.New("mkswap missing")
	r := New(loader.load, testLogger())

	err := r.Init([]backend.Spec{
		{Kind: backend.LVM},
		{Kind: backend.Btrfs},
		{Kind: backend.Swap},
	})
	if err == nil {
		t.Fatal("Init() error = nil, want *PluginsFailedError")
	}

	var pfe *PluginsFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("Init() error = %T, want *PluginsFailedError", err)
	}
	if len(pfe.Failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(pfe.Failures))
	}

	// Both failing backends must be named, not just the first.
	msg := err.Error()
	for _, want := range []string{"lvm", "swap"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q does not mention %q", msg, want)
		}
	}
	// The backend that loaded fine stays loaded.
	if r.States()[backend.Btrfs].Status != StatusLoaded {
		t.Error("btrfs should remain loaded despite sibling failures")
	}
}

func TestInitFailureCausesAreInspectable(t *testing.T) {
	cause := errors.New("no such file")
	loader := newFakeLoader()
	loader.fail[backend.Crypto] = cause
	r := New(loader.load, testLogger())

	err := r.Init([]backend.Spec{{Kind: backend.Crypto}})
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want aggregated error to wrap causes")
	}
}

func TestInitEmptySpecsIsBestEffort(t *testing.T) {
	loader := newFakeLoader()
	loader.fail[backend.Crypto] = errors.New("cryptsetup missing")
	r := New(loader.load, testLogger())

	if err := r.Init(nil); err != nil {
		t.Fatalf("Init(nil) error = %v, want best-effort success", err)
	}
	if !r.IsInitialized() {
		t.Error("IsInitialized() = false, want true with partial default set")
	}
	if r.States()[backend.Crypto].Status != StatusFailed {
		t.Error("failed optional backend should be recorded as failed")
	}
}

func TestDiscoveryOrderIsEnumerationOrder(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())

	// Request in reverse order; loads must still happen in enumeration order.
	specs := []backend.Spec{{Kind: backend.Swap}, {Kind: backend.Btrfs}, {Kind: backend.LVM}}
	if err := r.Init(specs); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	want := []backend.Kind{backend.LVM, backend.Btrfs, backend.Swap}
	if len(loader.loads) != len(want) {
		t.Fatalf("loader saw %d loads, want %d", len(loader.loads), len(want))
	}
	for i, kind := range want {
		if loader.loads[i].Kind != kind {
			t.Errorf("load[%d] = %s, want %s", i, loader.loads[i].Kind, kind)
		}
	}
}

func TestTryInitNeverFails(t *testing.T) {
	loader := newFakeLoader()
	loader.fail[backend.LVM] = errors.New("boom")
	r := New(loader.load, testLogger())

	states := r.TryInit([]backend.Spec{{Kind: backend.LVM}, {Kind: backend.Btrfs}})

	if states[backend.LVM].Status != StatusFailed {
		t.Errorf("lvm state = %s, want failed", states[backend.LVM].Status)
	}
	if states[backend.LVM].Err == nil {
		t.Error("failed state must carry the load error")
	}
	if states[backend.Btrfs].Status != StatusLoaded {
		t.Errorf("btrfs state = %s, want loaded", states[backend.Btrfs].Status)
	}
}

func TestReinitWithoutReloadIsIdempotent(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())

	specs := []backend.Spec{{Kind: backend.LVM}}
	if err := r.Init(specs); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first := loader.created[backend.LVM]

	if err := r.Reinit(specs, false); err != nil {
		t.Fatalf("Reinit(reload=false) error = %v", err)
	}
	if len(loader.loads) != 1 {
		t.Errorf("loader called %d times, want 1: already-loaded modules must not reload", len(loader.loads))
	}

	b, err := r.Backend(backend.LVM)
	if err != nil {
		t.Fatalf("Backend() error = %v", err)
	}
	if b != backend.Backend(first) {
		t.Error("loaded module instance changed without reload")
	}
}

func TestReinitWithReloadSwapsModule(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())

	specs := []backend.Spec{{Kind: backend.LVM}}
	if err := r.Init(specs); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first := loader.created[backend.LVM]

	if err := r.Reinit(specs, true); err != nil {
		t.Fatalf("Reinit(reload=true) error = %v", err)
	}
	if len(loader.loads) != 2 {
		t.Errorf("loader called %d times, want 2", len(loader.loads))
	}
	if !first.closed {
		t.Error("old module was not closed during reload")
	}

	b, _ := r.Backend(backend.LVM)
	if b == backend.Backend(first) {
		t.Error("reload did not swap in a fresh module")
	}
}

func TestReinitRecoversFailedBackend(t *testing.T) {
	loader := newFakeLoader()
	loader.fail[backend.Btrfs] = errors.New("transient")
	r := New(loader.load, testLogger())

	if err := r.Init([]backend.Spec{{Kind: backend.Btrfs}}); err == nil {
		t.Fatal("Init() error = nil, want failure")
	}

	delete(loader.fail, backend.Btrfs)
	if err := r.Reinit([]backend.Spec{{Kind: backend.Btrfs}}, false); err != nil {
		t.Fatalf("Reinit() after recovery error = %v", err)
	}
	if r.States()[backend.Btrfs].Status != StatusLoaded {
		t.Error("recovered backend should be loaded")
	}
}

func TestUnknownKindFailsLoad(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())

	err := r.Init([]backend.Spec{{Kind: backend.Kind("zfs")}})
	var pfe *PluginsFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("Init() error = %T, want *PluginsFailedError", err)
	}
	if pfe.Failures[0].Kind != backend.Kind("zfs") {
		t.Errorf("failure kind = %s, want zfs", pfe.Failures[0].Kind)
	}
}

func TestCapabilityAndLookup(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())
	if err := r.Init([]backend.Spec{{Kind: backend.LVM}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if !r.Capability(backend.LVM, "probe") {
		t.Error("Capability(probe) = false, want true")
	}
	if r.Capability(backend.LVM, "missing") {
		t.Error("Capability(missing) = true, want false")
	}
	if r.Capability(backend.Btrfs, "probe") {
		t.Error("Capability on unloaded kind = true, want false")
	}

	fn, err := Entry[func(context.Context) error](r, backend.LVM, "probe")
	if err != nil {
		t.Fatalf("Entry() error = %v", err)
	}
	if err := fn(context.Background()); err != nil {
		t.Errorf("dispatched call error = %v", err)
	}
}

func TestUncapableCallFailsFast(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())
	if err := r.Init([]backend.Spec{{Kind: backend.LVM}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := r.Lookup(backend.LVM, "frobnicate"); !errors.Is(err, ErrCapabilityUnavailable) {
		t.Errorf("Lookup(unsupported) error = %v, want ErrCapabilityUnavailable", err)
	}
	if _, err := r.Lookup(backend.Swap, "probe"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Lookup on unloaded kind error = %v, want ErrNotLoaded", err)
	}
}

func TestDeclaredButUnresolvableIsNotCapable(t *testing.T) {
	r := New(func(spec backend.Spec) (backend.Backend, error) {
		// Declares three functions but only resolves two.
		noop := func(context.Context) error { return nil }
		return &fakeBackend{
			kind:     spec.Kind,
			declared: []backend.Func{"probe", "list", "shiny"},
			table:    map[backend.Func]any{"probe": noop, "list": noop},
		}, nil
	}, testLogger())

	if err := r.Init([]backend.Spec{{Kind: backend.LVM}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if r.Capability(backend.LVM, "shiny") {
		t.Error("declared-but-unresolvable function must not be capable")
	}
}

func TestMissingBaselineFailsLoad(t *testing.T) {
	r := New(func(spec backend.Spec) (backend.Backend, error) {
		noop := func(context.Context) error { return nil }
		return &fakeBackend{
			kind:     spec.Kind,
			declared: []backend.Func{"probe"},
			table:    map[backend.Func]any{"probe": noop},
			baseline: []backend.Func{"probe", "list"},
		}, nil
	}, testLogger())

	err := r.Init([]backend.Spec{{Kind: backend.LVM}})
	var pfe *PluginsFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("Init() error = %T, want *PluginsFailedError", err)
	}
	if !strings.Contains(pfe.Failures[0].Err.Error(), "mandatory entry point") {
		t.Errorf("failure = %v, want mandatory entry point diagnostic", pfe.Failures[0].Err)
	}
}

func TestEntryTypeMismatch(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader.load, testLogger())
	if err := r.Init([]backend.Spec{{Kind: backend.LVM}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, err := Entry[func() string](r, backend.LVM, "probe")
	if err == nil {
		t.Fatal("Entry with wrong signature succeeded")
	}
	if errors.Is(err, ErrCapabilityUnavailable) {
		t.Error("type mismatch must not masquerade as a capability error")
	}
}

func TestDuplicateSpecsFirstWins(t *testing.T) {
	var paths []string
	r := New(func(spec backend.Spec) (backend.Backend, error) {
		paths = append(paths, spec.Path)
		return nil, fmt.Errorf("refusing %s", spec.Path)
	}, testLogger())

	_ = r.Init([]backend.Spec{
		{Kind: backend.LVM, Path: "/opt/lvm-a"},
		{Kind: backend.LVM, Path: "/opt/lvm-b"},
	})
	if len(paths) != 1 || paths[0] != "/opt/lvm-a" {
		t.Errorf("loader saw paths %v, want only the first spec for a kind", paths)
	}
}
