// Package lvm drives the lvm(8) command set: physical volumes, volume
// groups, logical volumes, snapshots and thin provisioning. All sizes cross
// the package boundary in bytes; the unit suffixes lvm wants are appended
// here.
package lvm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/internal/globalconf"
	"github.com/jfarrand/diskwright/internal/kvparse"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// DefaultTool is the multiplexed lvm binary all subcommands run through.
const DefaultTool = "lvm"

// ErrParse means lvm produced output but no line matched the requested
// report schema.
var ErrParse = errors.New("no usable record in lvm output")

// Report queries share a fixed flag set so every line comes back as
// unquoted LVM2_*=value tokens in bytes without a heading row.
var (
	pvsQuery = []string{"pvs", "--unit=b", "--nosuffix", "--nameprefixes",
		"--unquoted", "--noheadings",
		"-o", "pv_name,pv_uuid,pe_start,vg_name,vg_uuid,vg_size,vg_free," +
			"vg_extent_size,vg_extent_count,vg_free_count,pv_count"}
	vgsQuery = []string{"vgs", "--noheadings", "--nosuffix", "--nameprefixes",
		"--unquoted", "--units=b",
		"-o", "name,uuid,size,free,extent_size,extent_count,free_count,pv_count"}
	lvsQuery = []string{"lvs", "--noheadings", "--nosuffix", "--nameprefixes",
		"--unquoted", "--units=b",
		"-o", "vg_name,lv_name,lv_uuid,lv_size,lv_attr,segtype"}
)

// Backend executes LVM operations through an external lvm binary.
type Backend struct {
	tool   string
	run    cmdexec.Runner
	conf   *globalconf.Store
	logger *zap.Logger

	thin bool
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Baseliner = (*Backend)(nil)
	_ backend.Versioner = (*Backend)(nil)
)

// Option adjusts backend construction.
type Option func(*Backend)

// WithoutThin drops the thin provisioning operations from the declared
// function set, for installs whose lvm build lacks the thin tools.
func WithoutThin() Option {
	return func(b *Backend) { b.thin = false }
}

// New creates an LVM backend running tool. conf supplies the global
// configuration appended to every invocation.
func New(tool string, run cmdexec.Runner, conf *globalconf.Store, logger *zap.Logger, opts ...Option) *Backend {
	b := &Backend{
		tool:   tool,
		run:    run,
		conf:   conf,
		logger: logger,
		thin:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Kind() backend.Kind { return backend.LVM }

// Baseline names the pure computational entry points every build of this
// backend must provide.
func (b *Backend) Baseline() []backend.Func {
	return []backend.Func{
		"is_supported_pe_size",
		"get_max_lv_size",
		"round_size_to_pe",
		"get_lv_physical_size",
		"get_thpool_padding",
	}
}

func (b *Backend) Functions() []backend.Func {
	fns := make([]backend.Func, 0, len(b.Table()))
	for fn := range b.Table() {
		fns = append(fns, fn)
	}
	return fns
}

func (b *Backend) Table() map[backend.Func]any {
	table := map[backend.Func]any{
		"is_supported_pe_size": IsSupportedPESize,
		"get_max_lv_size":      func() uint64 { return MaxLVSize },
		"round_size_to_pe":     RoundSizeToPE,
		"get_lv_physical_size": LVPhysicalSize,
		"get_thpool_padding":   ThPoolPadding,

		"pvcreate": b.PVCreate,
		"pvresize": b.PVResize,
		"pvremove": b.PVRemove,
		"pvmove":   b.PVMove,
		"pvscan":   b.PVScan,
		"pvinfo":   b.PVInfo,
		"pvs":      b.PVs,

		"vgcreate":     b.VGCreate,
		"vgremove":     b.VGRemove,
		"vgactivate":   b.VGActivate,
		"vgdeactivate": b.VGDeactivate,
		"vgextend":     b.VGExtend,
		"vgreduce":     b.VGReduce,
		"vginfo":       b.VGInfo,
		"vgs":          b.VGs,

		"lvorigin":         b.LVOrigin,
		"lvcreate":         b.LVCreate,
		"lvremove":         b.LVRemove,
		"lvresize":         b.LVResize,
		"lvactivate":       b.LVActivate,
		"lvdeactivate":     b.LVDeactivate,
		"lvsnapshotcreate": b.LVSnapshotCreate,
		"lvsnapshotmerge":  b.LVSnapshotMerge,
		"lvinfo":           b.LVInfo,
		"lvs":              b.LVs,
	}
	if b.thin {
		table["thpoolcreate"] = b.ThPoolCreate
		table["thlvcreate"] = b.ThLVCreate
		table["thlvpoolname"] = b.ThLVPoolName
		table["thsnapshotcreate"] = b.ThSnapshotCreate
	}
	return table
}

// ToolVersion reports the version string of the backing lvm binary.
func (b *Backend) ToolVersion(ctx context.Context) (string, error) {
	out, err := b.capture(ctx, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SetGlobalConfig replaces the global LVM configuration passed as
// --config to every subsequent invocation. Empty means no override.
func (b *Backend) SetGlobalConfig(config string) {
	b.conf.Set(config)
}

// GlobalConfig returns the currently set global LVM configuration.
func (b *Backend) GlobalConfig() string {
	return b.conf.Get()
}

// argv prepends the tool and appends the config override, when set.
func (b *Backend) argv(config string, args []string) []string {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, b.tool)
	argv = append(argv, args...)
	if config != "" {
		argv = append(argv, "--config="+config)
	}
	return argv
}

// call runs one lvm subcommand. The global config lock is held for the
// whole run so the configured value cannot change mid-invocation.
func (b *Backend) call(ctx context.Context, args ...string) error {
	return b.conf.Hold(func(config string) error {
		return b.run.Run(ctx, b.argv(config, args))
	})
}

// capture is call for queries whose stdout is the result.
func (b *Backend) capture(ctx context.Context, args ...string) (string, error) {
	var out string
	err := b.conf.Hold(func(config string) error {
		var err error
		out, err = b.run.Capture(ctx, b.argv(config, args))
		return err
	})
	return out, err
}

func bytesArg(n uint64) string {
	return strconv.FormatUint(n, 10) + "b"
}

func qualify(vgName, lvName string) string {
	return vgName + "/" + lvName
}

// PVCreate initializes device as a physical volume. dataAlignment sets the
// offset of the first PE and metadataSize the reserved metadata area; zero
// selects the lvm default for either.
func (b *Backend) PVCreate(ctx context.Context, device string, dataAlignment, metadataSize uint64) error {
	args := []string{"pvcreate", device}
	if dataAlignment != 0 {
		args = append(args, "--dataalignment="+bytesArg(dataAlignment))
	}
	if metadataSize != 0 {
		args = append(args, "--metadatasize="+bytesArg(metadataSize))
	}
	return b.call(ctx, args...)
}

// PVResize sets the PV on device to size bytes, or to the size of the
// underlying block device when size is 0.
func (b *Backend) PVResize(ctx context.Context, device string, size uint64) error {
	args := []string{"pvresize"}
	if size != 0 {
		args = append(args, "--setphysicalvolumesize", bytesArg(size))
	}
	args = append(args, device)
	return b.call(ctx, args...)
}

// PVRemove destroys the PV on device.
func (b *Backend) PVRemove(ctx context.Context, device string) error {
	// lvm wants a lot of persuading here; the doubled --force is intentional
	return b.call(ctx, "pvremove", "--force", "--force", "--yes", device)
}

// PVMove moves extents off the src PV. With dest empty the VG allocation
// rules choose where they go.
func (b *Backend) PVMove(ctx context.Context, src, dest string) error {
	args := []string{"pvmove", src}
	if dest != "" {
		args = append(args, dest)
	}
	return b.call(ctx, args...)
}

// PVScan scans for PVs. device narrows the scan and is only honored when
// updateCache is set; otherwise the whole system is scanned.
func (b *Backend) PVScan(ctx context.Context, device string, updateCache bool) error {
	args := []string{"pvscan"}
	if updateCache {
		args = append(args, "--cache")
		if device != "" {
			args = append(args, device)
		}
	} else if device != "" {
		b.logger.Warn("ignoring device argument in pvscan, cache update not requested",
			zap.String("device", device))
	}
	return b.call(ctx, args...)
}

// PVInfo queries the PV on device.
func (b *Backend) PVInfo(ctx context.Context, device string) (*PVInfo, error) {
	out, err := b.capture(ctx, append(append([]string{}, pvsQuery...), device)...)
	if err != nil {
		return nil, err
	}
	vars, ok := kvparse.First(out, pvFieldCount)
	if !ok {
		return nil, fmt.Errorf("physical volume %q: %w", device, ErrParse)
	}
	return pvInfoFromVars(vars), nil
}

// PVs lists every PV in the system. No PVs is an empty list, not an error.
func (b *Backend) PVs(ctx context.Context) ([]*PVInfo, error) {
	out, err := b.capture(ctx, pvsQuery...)
	if err != nil {
		if errors.Is(err, cmdexec.ErrNoOutput) {
			return []*PVInfo{}, nil
		}
		return nil, err
	}
	lines := kvparse.All(out, pvFieldCount)
	if len(lines) == 0 {
		return nil, fmt.Errorf("physical volumes: %w", ErrParse)
	}
	pvs := make([]*PVInfo, 0, len(lines))
	for _, vars := range lines {
		pvs = append(pvs, pvInfoFromVars(vars))
	}
	return pvs, nil
}

// VGCreate creates the name VG from the given PVs. peSize 0 selects the
// default physical extent size.
func (b *Backend) VGCreate(ctx context.Context, name string, pvs []string, peSize uint64) error {
	args := []string{"vgcreate", "-s", bytesArg(resolvePESize(peSize)), name}
	args = append(args, pvs...)
	return b.call(ctx, args...)
}

// VGRemove removes the VG.
func (b *Backend) VGRemove(ctx context.Context, vgName string) error {
	return b.call(ctx, "vgremove", "--force", vgName)
}

// VGActivate activates every LV in the VG.
func (b *Backend) VGActivate(ctx context.Context, vgName string) error {
	return b.call(ctx, "vgchange", "-ay", vgName)
}

// VGDeactivate deactivates every LV in the VG.
func (b *Backend) VGDeactivate(ctx context.Context, vgName string) error {
	return b.call(ctx, "vgchange", "-an", vgName)
}

// VGExtend adds the PV on device to the VG.
func (b *Backend) VGExtend(ctx context.Context, vgName, device string) error {
	return b.call(ctx, "vgextend", vgName, device)
}

// VGReduce removes the PV on device from the VG. With device empty the VG
// is instead reduced of its missing PVs. Extents are not moved off first;
// that is PVMove's job.
func (b *Backend) VGReduce(ctx context.Context, vgName, device string) error {
	if device == "" {
		return b.call(ctx, "vgreduce", "--removemissing", "--force", vgName)
	}
	return b.call(ctx, "vgreduce", vgName, device)
}

// VGInfo queries one VG.
func (b *Backend) VGInfo(ctx context.Context, vgName string) (*VGInfo, error) {
	out, err := b.capture(ctx, append(append([]string{}, vgsQuery...), vgName)...)
	if err != nil {
		return nil, err
	}
	vars, ok := kvparse.First(out, vgFieldCount)
	if !ok {
		return nil, fmt.Errorf("volume group %q: %w", vgName, ErrParse)
	}
	return vgInfoFromVars(vars), nil
}

// VGs lists every VG in the system. No VGs is an empty list, not an error.
func (b *Backend) VGs(ctx context.Context) ([]*VGInfo, error) {
	out, err := b.capture(ctx, vgsQuery...)
	if err != nil {
		if errors.Is(err, cmdexec.ErrNoOutput) {
			return []*VGInfo{}, nil
		}
		return nil, err
	}
	lines := kvparse.All(out, vgFieldCount)
	if len(lines) == 0 {
		return nil, fmt.Errorf("volume groups: %w", ErrParse)
	}
	vgs := make([]*VGInfo, 0, len(lines))
	for _, vars := range lines {
		vgs = append(vgs, vgInfoFromVars(vars))
	}
	return vgs, nil
}

// LVOrigin returns the origin volume of a snapshot LV, or the empty string
// for a volume with no origin.
func (b *Backend) LVOrigin(ctx context.Context, vgName, lvName string) (string, error) {
	out, err := b.capture(ctx, "lvs", "--noheadings", "-o", "origin", qualify(vgName, lvName))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LVCreate creates an LV of size bytes in the VG, optionally restricted to
// the given PVs.
func (b *Backend) LVCreate(ctx context.Context, vgName, lvName string, size uint64, pvs []string) error {
	args := []string{"lvcreate", "-n", lvName,
		"-L", strconv.FormatUint(size/1024, 10) + "K", "-y", vgName}
	args = append(args, pvs...)
	return b.call(ctx, args...)
}

// LVRemove removes the LV, without prompting when force is set.
func (b *Backend) LVRemove(ctx context.Context, vgName, lvName string, force bool) error {
	args := []string{"lvremove"}
	if force {
		args = append(args, "--force", "--yes")
	}
	args = append(args, qualify(vgName, lvName))
	return b.call(ctx, args...)
}

// LVResize resizes the LV to size bytes.
func (b *Backend) LVResize(ctx context.Context, vgName, lvName string, size uint64) error {
	return b.call(ctx, "lvresize", "--force", "-L", bytesArg(size), qualify(vgName, lvName))
}

// LVActivate activates the LV. ignoreSkip activates even volumes flagged to
// be skipped.
func (b *Backend) LVActivate(ctx context.Context, vgName, lvName string, ignoreSkip bool) error {
	args := []string{"lvchange", "-ay"}
	if ignoreSkip {
		args = append(args, "-K")
	}
	args = append(args, qualify(vgName, lvName))
	return b.call(ctx, args...)
}

// LVDeactivate deactivates the LV.
func (b *Backend) LVDeactivate(ctx context.Context, vgName, lvName string) error {
	return b.call(ctx, "lvchange", "-an", qualify(vgName, lvName))
}

// LVSnapshotCreate creates a snapshot of the origin LV with size bytes of
// copy-on-write space.
func (b *Backend) LVSnapshotCreate(ctx context.Context, vgName, originName, snapshotName string, size uint64) error {
	return b.call(ctx, "lvcreate", "-s", "-L", bytesArg(size),
		"-n", snapshotName, qualify(vgName, originName))
}

// LVSnapshotMerge merges the snapshot back into its origin.
func (b *Backend) LVSnapshotMerge(ctx context.Context, vgName, snapshotName string) error {
	return b.call(ctx, "lvconvert", "--merge", qualify(vgName, snapshotName))
}

// LVInfo queries one LV.
func (b *Backend) LVInfo(ctx context.Context, vgName, lvName string) (*LVInfo, error) {
	out, err := b.capture(ctx, append(append([]string{}, lvsQuery...), qualify(vgName, lvName))...)
	if err != nil {
		return nil, err
	}
	vars, ok := kvparse.First(out, lvFieldCount)
	if !ok {
		return nil, fmt.Errorf("logical volume %q: %w", qualify(vgName, lvName), ErrParse)
	}
	return lvInfoFromVars(vars), nil
}

// LVs lists the LVs in vgName, or in the whole system when vgName is empty.
// No LVs is an empty list, not an error.
func (b *Backend) LVs(ctx context.Context, vgName string) ([]*LVInfo, error) {
	args := append([]string{}, lvsQuery...)
	if vgName != "" {
		args = append(args, vgName)
	}
	out, err := b.capture(ctx, args...)
	if err != nil {
		if errors.Is(err, cmdexec.ErrNoOutput) {
			return []*LVInfo{}, nil
		}
		return nil, err
	}
	lines := kvparse.All(out, lvFieldCount)
	if len(lines) == 0 {
		return nil, fmt.Errorf("logical volumes: %w", ErrParse)
	}
	lvs := make([]*LVInfo, 0, len(lines))
	for _, vars := range lines {
		lvs = append(lvs, lvInfoFromVars(vars))
	}
	return lvs, nil
}

// ThPoolCreate creates a thin pool of size bytes. mdSize and chunkSize tune
// the pool metadata; profile names an lvm profile. Zero or empty selects
// the default for each.
func (b *Backend) ThPoolCreate(ctx context.Context, vgName, lvName string, size, mdSize, chunkSize uint64, profile string) error {
	args := []string{"lvcreate", "-T", "-L", bytesArg(size)}
	if mdSize != 0 {
		args = append(args, "--poolmetadatasize="+bytesArg(mdSize))
	}
	if chunkSize != 0 {
		args = append(args, "--chunksize="+bytesArg(chunkSize))
	}
	if profile != "" {
		args = append(args, "--profile="+profile)
	}
	args = append(args, qualify(vgName, lvName))
	return b.call(ctx, args...)
}

// ThLVCreate creates a thin LV of virtual size bytes backed by the pool.
func (b *Backend) ThLVCreate(ctx context.Context, vgName, poolName, lvName string, size uint64) error {
	return b.call(ctx, "lvcreate", "-T", qualify(vgName, poolName),
		"-V", bytesArg(size), "-n", lvName)
}

// ThLVPoolName returns the name of the pool backing a thin LV.
func (b *Backend) ThLVPoolName(ctx context.Context, vgName, lvName string) (string, error) {
	out, err := b.capture(ctx, "lvs", "--noheadings", "-o", "pool_lv", qualify(vgName, lvName))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ThSnapshotCreate snapshots a thin LV, optionally into a named pool.
func (b *Backend) ThSnapshotCreate(ctx context.Context, vgName, originName, snapshotName, poolName string) error {
	args := []string{"lvcreate", "-s", "-n", snapshotName}
	if poolName != "" {
		args = append(args, "--thinpool", poolName)
	}
	args = append(args, qualify(vgName, originName))
	return b.call(ctx, args...)
}
