// Package btrfs drives the btrfs(8) and mkfs.btrfs(8) tools: volume and
// device management, subvolumes, snapshots and filesystem maintenance.
package btrfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// Default tool names; a backend spec path overrides the first.
const (
	DefaultTool     = "btrfs"
	DefaultMkfsTool = "mkfs.btrfs"
)

// ErrParse means the btrfs tool produced output no parser recognized.
var ErrParse = errors.New("no usable record in btrfs output")

// Backend executes btrfs operations through the external btrfs tools.
type Backend struct {
	tool     string
	mkfsTool string
	run      cmdexec.Runner
	logger   *zap.Logger
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Baseliner = (*Backend)(nil)
	_ backend.Versioner = (*Backend)(nil)
)

// New creates a btrfs backend running tool for management operations and
// mkfsTool for volume creation.
func New(tool, mkfsTool string, run cmdexec.Runner, logger *zap.Logger) *Backend {
	return &Backend{tool: tool, mkfsTool: mkfsTool, run: run, logger: logger}
}

func (b *Backend) Kind() backend.Kind { return backend.Btrfs }

func (b *Backend) Baseline() []backend.Func {
	return []backend.Func{"create_volume", "list_devices", "list_subvolumes", "filesystem_info"}
}

func (b *Backend) Functions() []backend.Func {
	fns := make([]backend.Func, 0, len(b.Table()))
	for fn := range b.Table() {
		fns = append(fns, fn)
	}
	return fns
}

func (b *Backend) Table() map[backend.Func]any {
	return map[backend.Func]any{
		"create_volume":            b.CreateVolume,
		"add_device":               b.AddDevice,
		"remove_device":            b.RemoveDevice,
		"create_subvolume":         b.CreateSubvolume,
		"delete_subvolume":         b.DeleteSubvolume,
		"get_default_subvolume_id": b.DefaultSubvolumeID,
		"set_default_subvolume":    b.SetDefaultSubvolume,
		"create_snapshot":          b.CreateSnapshot,
		"list_devices":             b.ListDevices,
		"list_subvolumes":          b.ListSubvolumes,
		"filesystem_info":          b.FilesystemInfo,
		"mkfs":                     b.Mkfs,
		"resize":                   b.Resize,
		"check":                    b.Check,
		"repair":                   b.Repair,
		"change_label":             b.ChangeLabel,
	}
}

// ToolVersion reports the version string of the btrfs binary.
func (b *Backend) ToolVersion(ctx context.Context) (string, error) {
	out, err := b.run.Capture(ctx, []string{b.tool, "--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (b *Backend) call(ctx context.Context, args ...string) error {
	return b.run.Run(ctx, append([]string{b.tool}, args...))
}

func (b *Backend) capture(ctx context.Context, args ...string) (string, error) {
	return b.run.Capture(ctx, append([]string{b.tool}, args...))
}

// subvolPath joins a mountpoint and subvolume name without doubling the
// separator.
func subvolPath(mountpoint, name string) string {
	if strings.HasSuffix(mountpoint, "/") {
		return mountpoint + name
	}
	return mountpoint + "/" + name
}

// CreateVolume creates a btrfs volume spanning devices. label names the
// volume; dataLevel and mdLevel select RAID levels for data and metadata.
// Empty means the mkfs.btrfs default for each.
func (b *Backend) CreateVolume(ctx context.Context, devices []string, label, dataLevel, mdLevel string) error {
	if len(devices) == 0 {
		return errors.New("no devices given")
	}
	for _, device := range devices {
		if _, err := os.Stat(device); err != nil {
			return fmt.Errorf("device %s does not exist", device)
		}
	}

	args := []string{b.mkfsTool}
	if label != "" {
		args = append(args, "--label", label)
	}
	if dataLevel != "" {
		args = append(args, "--data", dataLevel)
	}
	if mdLevel != "" {
		args = append(args, "--metadata", mdLevel)
	}
	args = append(args, devices...)
	return b.run.Run(ctx, args)
}

// Mkfs is CreateVolume under the name the mkfs tooling expects.
func (b *Backend) Mkfs(ctx context.Context, devices []string, label, dataLevel, mdLevel string) error {
	return b.CreateVolume(ctx, devices, label, dataLevel, mdLevel)
}

// AddDevice adds device to the volume mounted at mountpoint.
func (b *Backend) AddDevice(ctx context.Context, mountpoint, device string) error {
	return b.call(ctx, "device", "add", device, mountpoint)
}

// RemoveDevice removes device from the volume mounted at mountpoint.
func (b *Backend) RemoveDevice(ctx context.Context, mountpoint, device string) error {
	return b.call(ctx, "device", "delete", device, mountpoint)
}

// CreateSubvolume creates the name subvolume under mountpoint.
func (b *Backend) CreateSubvolume(ctx context.Context, mountpoint, name string) error {
	return b.call(ctx, "subvol", "create", subvolPath(mountpoint, name))
}

// DeleteSubvolume deletes the name subvolume under mountpoint.
func (b *Backend) DeleteSubvolume(ctx context.Context, mountpoint, name string) error {
	return b.call(ctx, "subvol", "delete", subvolPath(mountpoint, name))
}

// DefaultSubvolumeID returns the ID of the default subvolume of the volume
// mounted at mountpoint.
func (b *Backend) DefaultSubvolumeID(ctx context.Context, mountpoint string) (uint64, error) {
	out, err := b.capture(ctx, "subvol", "get-default", mountpoint)
	if err != nil {
		return 0, err
	}
	m := defaultSubvolRE.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("default subvolume of %s: %w", mountpoint, ErrParse)
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("default subvolume of %s: %w", mountpoint, ErrParse)
	}
	return id, nil
}

// SetDefaultSubvolume makes subvolID the default subvolume of the volume
// mounted at mountpoint.
func (b *Backend) SetDefaultSubvolume(ctx context.Context, mountpoint string, subvolID uint64) error {
	return b.call(ctx, "subvol", "set-default", strconv.FormatUint(subvolID, 10), mountpoint)
}

// CreateSnapshot snapshots the subvolume at source into dest, read-only
// when ro is set.
func (b *Backend) CreateSnapshot(ctx context.Context, source, dest string, ro bool) error {
	args := []string{"subvol", "snapshot"}
	if ro {
		args = append(args, "-r")
	}
	args = append(args, source, dest)
	return b.call(ctx, args...)
}

// ListDevices lists the devices of the volume containing device.
func (b *Backend) ListDevices(ctx context.Context, device string) ([]*DeviceInfo, error) {
	out, err := b.capture(ctx, "filesystem", "show", device)
	if err != nil {
		return nil, err
	}

	var devices []*DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		m := deviceRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		devices = append(devices, deviceInfoFromMatch(m, b.logger))
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("devices of %s: %w", device, ErrParse)
	}
	return devices, nil
}

// ListSubvolumes lists the subvolumes of the volume mounted at mountpoint,
// restricted to snapshots when snapshotsOnly is set. A volume without
// subvolumes yields an empty list.
func (b *Backend) ListSubvolumes(ctx context.Context, mountpoint string, snapshotsOnly bool) ([]*SubvolumeInfo, error) {
	args := []string{"subvol", "list", "-p"}
	if snapshotsOnly {
		args = append(args, "-s")
	}
	args = append(args, mountpoint)

	out, err := b.capture(ctx, args...)
	if err != nil {
		if errors.Is(err, cmdexec.ErrNoOutput) {
			return []*SubvolumeInfo{}, nil
		}
		return nil, err
	}

	var subvols []*SubvolumeInfo
	for _, line := range strings.Split(out, "\n") {
		m := subvolRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		subvols = append(subvols, subvolumeInfoFromMatch(m))
	}
	if len(subvols) == 0 {
		return nil, fmt.Errorf("subvolumes of %s: %w", mountpoint, ErrParse)
	}
	return subvols, nil
}

// FilesystemInfo reports the filesystem of the volume containing device.
func (b *Backend) FilesystemInfo(ctx context.Context, device string) (*FilesystemInfo, error) {
	out, err := b.capture(ctx, "filesystem", "show", device)
	if err != nil {
		return nil, err
	}
	m := filesystemRE.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("filesystem of %s: %w", device, ErrParse)
	}

	info := &FilesystemInfo{
		Label: named(filesystemRE, m, "label"),
		UUID:  named(filesystemRE, m, "uuid"),
	}
	info.NumDevices, _ = strconv.ParseUint(named(filesystemRE, m, "num_devices"), 10, 64)
	if info.Used, err = ParseSize(named(filesystemRE, m, "used")); err != nil {
		b.logger.Warn("unparseable filesystem usage", zap.Error(err))
	}
	return info, nil
}

// Resize resizes the filesystem mounted at mountpoint to size bytes.
func (b *Backend) Resize(ctx context.Context, mountpoint string, size uint64) error {
	return b.call(ctx, "filesystem", "resize", strconv.FormatUint(size, 10), mountpoint)
}

// Check checks the filesystem on device.
func (b *Backend) Check(ctx context.Context, device string) error {
	return b.call(ctx, "check", device)
}

// Repair checks and repairs the filesystem on device.
func (b *Backend) Repair(ctx context.Context, device string) error {
	return b.call(ctx, "check", "--repair", device)
}

// ChangeLabel relabels the filesystem mounted at mountpoint.
func (b *Backend) ChangeLabel(ctx context.Context, mountpoint, label string) error {
	return b.call(ctx, "filesystem", "label", mountpoint, label)
}
