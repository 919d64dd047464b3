package btrfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
)

type fakeRunner struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, argv []string) error {
	f.calls = append(f.calls, argv)
	return f.err
}

func (f *fakeRunner) RunInput(_ context.Context, argv []string, _ string) error {
	f.calls = append(f.calls, argv)
	return f.err
}

func (f *fakeRunner) Capture(_ context.Context, argv []string) (string, error) {
	f.calls = append(f.calls, argv)
	return f.output, f.err
}

func (f *fakeRunner) last(t *testing.T) []string {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("no command was run")
	}
	return f.calls[len(f.calls)-1]
}

func newTestBackend(run *fakeRunner) *Backend {
	logger, _ := zap.NewDevelopment()
	return New(DefaultTool, DefaultMkfsTool, run, logger)
}

const filesystemShow = `Label: 'data'  uuid: 2b568f09-d4a2-40b7-8a83-52b3b2f7e381
	Total devices 2 FS bytes used 1.14MiB
	devid    1 size 9.31GiB used 1.01GiB path /dev/sda1
	devid    2 size 4.66GiB used 1.01GiB path /dev/sdb1

`

func TestParseSize(t *testing.T) {
	tests := []struct {
		spec    string
		want    uint64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"2KiB", 2048, false},
		{"1.5MiB", 1572864, false},
		{"9.31GiB", 9996536381, false},
		{"2KB", 2000, false},
		{"garbage", 0, true},
		{"12XiB", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.spec, got, tt.want)
		}
	}
}

func TestListDevices(t *testing.T) {
	run := &fakeRunner{output: filesystemShow}
	b := newTestBackend(run)

	devices, err := b.ListDevices(context.Background(), "/dev/sda1")
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[0].ID != 1 || devices[0].Path != "/dev/sda1" {
		t.Errorf("device[0] = %+v", devices[0])
	}
	if devices[1].Size != 5003636899 {
		t.Errorf("device[1].Size = %d, want 4.66GiB in bytes", devices[1].Size)
	}

	want := "btrfs filesystem show /dev/sda1"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestListDevicesGarbageIsParseError(t *testing.T) {
	run := &fakeRunner{output: "nothing that looks like a device table\n"}
	b := newTestBackend(run)

	_, err := b.ListDevices(context.Background(), "/dev/sda1")
	if !errors.Is(err, ErrParse) {
		t.Errorf("ListDevices() error = %v, want ErrParse", err)
	}
}

func TestFilesystemInfo(t *testing.T) {
	run := &fakeRunner{output: filesystemShow}
	b := newTestBackend(run)

	info, err := b.FilesystemInfo(context.Background(), "/dev/sda1")
	if err != nil {
		t.Fatalf("FilesystemInfo() error = %v", err)
	}
	if info.Label != "data" || info.UUID != "2b568f09-d4a2-40b7-8a83-52b3b2f7e381" {
		t.Errorf("identity = %q/%q", info.Label, info.UUID)
	}
	if info.NumDevices != 2 {
		t.Errorf("NumDevices = %d, want 2", info.NumDevices)
	}
	if info.Used != 1195376 {
		t.Errorf("Used = %d, want 1.14MiB in bytes", info.Used)
	}
}

func TestListSubvolumes(t *testing.T) {
	run := &fakeRunner{output: "" +
		"ID 256 gen 10 parent 5 top level 5 path home\n" +
		"ID 259 gen 12 cgen 12 parent 256 top level 256 " +
		"otime 2026-08-29 10:00:00 path home/snap\n"}
	b := newTestBackend(run)

	subvols, err := b.ListSubvolumes(context.Background(), "/mnt/data", false)
	if err != nil {
		t.Fatalf("ListSubvolumes() error = %v", err)
	}
	if len(subvols) != 2 {
		t.Fatalf("got %d subvolumes, want 2", len(subvols))
	}
	if subvols[0].ID != 256 || subvols[0].ParentID != 5 || subvols[0].Path != "home" {
		t.Errorf("subvol[0] = %+v", subvols[0])
	}
	if subvols[1].ID != 259 || subvols[1].Path != "home/snap" {
		t.Errorf("subvol[1] = %+v", subvols[1])
	}

	want := "btrfs subvol list -p /mnt/data"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestListSubvolumesSnapshotsOnly(t *testing.T) {
	run := &fakeRunner{output: "ID 259 gen 12 parent 256 top level 256 path home/snap\n"}
	b := newTestBackend(run)

	if _, err := b.ListSubvolumes(context.Background(), "/mnt/data", true); err != nil {
		t.Fatalf("ListSubvolumes() error = %v", err)
	}
	want := "btrfs subvol list -p -s /mnt/data"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestListSubvolumesNoOutputMeansNone(t *testing.T) {
	run := &fakeRunner{err: fmt.Errorf("%q: %w", "btrfs", cmdexec.ErrNoOutput)}
	b := newTestBackend(run)

	subvols, err := b.ListSubvolumes(context.Background(), "/mnt/data", false)
	if err != nil {
		t.Fatalf("ListSubvolumes() error = %v, want empty result", err)
	}
	if len(subvols) != 0 {
		t.Errorf("subvols = %v, want empty", subvols)
	}
}

func TestDefaultSubvolumeID(t *testing.T) {
	run := &fakeRunner{output: "ID 256 gen 10 top level 5 path home\n"}
	b := newTestBackend(run)

	id, err := b.DefaultSubvolumeID(context.Background(), "/mnt/data")
	if err != nil {
		t.Fatalf("DefaultSubvolumeID() error = %v", err)
	}
	if id != 256 {
		t.Errorf("id = %d, want 256", id)
	}
}

func TestCreateVolumeRequiresExistingDevices(t *testing.T) {
	run := &fakeRunner{}
	b := newTestBackend(run)

	if err := b.CreateVolume(context.Background(), nil, "", "", ""); err == nil {
		t.Error("CreateVolume(no devices) succeeded")
	}
	err := b.CreateVolume(context.Background(), []string{"/nonexistent/device"}, "", "", "")
	if err == nil {
		t.Error("CreateVolume(missing device) succeeded")
	}
	if len(run.calls) != 0 {
		t.Error("mkfs was run despite invalid devices")
	}
}

func TestCreateVolumeArgv(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "img")
	if err := os.WriteFile(dev, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	run := &fakeRunner{}
	b := newTestBackend(run)

	err := b.CreateVolume(context.Background(), []string{dev}, "data", "raid1", "raid1")
	if err != nil {
		t.Fatalf("CreateVolume() error = %v", err)
	}
	want := "mkfs.btrfs --label data --data raid1 --metadata raid1 " + dev
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestSubvolumePathJoining(t *testing.T) {
	run := &fakeRunner{}
	b := newTestBackend(run)

	if err := b.CreateSubvolume(context.Background(), "/mnt/data/", "home"); err != nil {
		t.Fatalf("CreateSubvolume() error = %v", err)
	}
	want := "btrfs subvol create /mnt/data/home"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestSnapshotReadOnlyFlag(t *testing.T) {
	run := &fakeRunner{}
	b := newTestBackend(run)

	if err := b.CreateSnapshot(context.Background(), "/mnt/data/home", "/mnt/data/snap", true); err != nil {
		t.Fatalf("CreateSnapshot() error = %v", err)
	}
	want := "btrfs subvol snapshot -r /mnt/data/home /mnt/data/snap"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestRepairArgv(t *testing.T) {
	run := &fakeRunner{}
	b := newTestBackend(run)

	if err := b.Repair(context.Background(), "/dev/sda1"); err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	want := "btrfs check --repair /dev/sda1"
	if got := strings.Join(run.last(t), " "); got != want {
		t.Errorf("argv = %q, want %q", got, want)
	}
}
