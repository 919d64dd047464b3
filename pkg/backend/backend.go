// Package backend defines the contract between the diskwright frontend and
// its storage backend modules. A backend wraps one storage technology's
// external tooling (LVM, btrfs-progs, cryptsetup, ...) and exposes the
// operations it implements through a resolved call table.
package backend

// Kind identifies a storage backend technology. The set of kinds is a fixed
// enumeration; discovery and diagnostics always follow the order returned by
// Kinds, never the order backends were requested in.
type Kind string

const (
	LVM    Kind = "lvm"
	Btrfs  Kind = "btrfs"
	Crypto Kind = "crypto"
	Swap   Kind = "swap"
)

// Kinds returns all known backend kinds in discovery order.
func Kinds() []Kind {
	return []Kind{LVM, Btrfs, Crypto, Swap}
}

// Valid reports whether k names a known backend kind.
func (k Kind) Valid() bool {
	switch k {
	case LVM, Btrfs, Crypto, Swap:
		return true
	}
	return false
}

// Func identifies a single backend operation, e.g. "pvcreate" or
// "create_snapshot". Function identifiers are stable across releases; they
// are the keys of a backend's call table.
type Func string

// Spec identifies a requested backend: which kind to load and, optionally,
// an override path to the tool that backs the module. An empty Path means
// "resolve the backend's default tool on PATH". Specs are immutable once
// constructed.
type Spec struct {
	Kind Kind
	Path string
}

// Backend is implemented by every loadable storage module.
//
// Functions returns the subset of the module's declared interface that this
// build actually implements; a module compiled or configured without an
// optional dependency simply omits the affected identifiers. Table returns
// the resolved entry points. The registry cross-checks the two at load time:
// an operation is capable only if it is both declared and resolvable.
type Backend interface {
	Kind() Kind
	Functions() []Func
	Table() map[Func]any
}
