package modules

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/globalconf"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/pkg/backend"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, []string) error              { return nil }
func (nopRunner) RunInput(context.Context, []string, string) error { return nil }
func (nopRunner) Capture(context.Context, []string) (string, error) {
	return "", nil
}

// fakeTool drops an executable stub named name into dir.
func fakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLoader(t *testing.T) func(backend.Spec) (backend.Backend, error) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return Loader(nopRunner{}, globalconf.New(), logger)
}

func TestLoaderResolvesDefaultToolFromPath(t *testing.T) {
	dir := t.TempDir()
	fakeTool(t, dir, "lvm")
	t.Setenv("PATH", dir)

	b, err := testLoader(t)(backend.Spec{Kind: backend.LVM})
	if err != nil {
		t.Fatalf("load lvm: %v", err)
	}
	if b.Kind() != backend.LVM {
		t.Errorf("Kind() = %s", b.Kind())
	}
	if _, ok := b.(*lvm.Backend); !ok {
		t.Errorf("backend type = %T", b)
	}
}

func TestLoaderMissingToolFails(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := testLoader(t)(backend.Spec{Kind: backend.LVM})
	if err == nil {
		t.Fatal("load succeeded with empty PATH")
	}
}

func TestLoaderSpecPathOverride(t *testing.T) {
	dir := t.TempDir()
	custom := fakeTool(t, dir, "lvm-custom")
	t.Setenv("PATH", t.TempDir()) // no lvm on PATH

	b, err := testLoader(t)(backend.Spec{Kind: backend.LVM, Path: custom})
	if err != nil {
		t.Fatalf("load with explicit path: %v", err)
	}
	if b == nil {
		t.Fatal("nil backend")
	}
}

func TestLoaderSpecPathMustBeExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "lvm")
	if err := os.WriteFile(plain, []byte("not a program"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := testLoader(t)(backend.Spec{Kind: backend.LVM, Path: plain})
	if err == nil {
		t.Fatal("load succeeded with a non-executable tool")
	}
}

func TestLoaderBtrfsNeedsBothTools(t *testing.T) {
	dir := t.TempDir()
	fakeTool(t, dir, "btrfs")
	t.Setenv("PATH", dir)

	if _, err := testLoader(t)(backend.Spec{Kind: backend.Btrfs}); err == nil {
		t.Fatal("load succeeded without mkfs.btrfs")
	}

	fakeTool(t, dir, "mkfs.btrfs")
	if _, err := testLoader(t)(backend.Spec{Kind: backend.Btrfs}); err != nil {
		t.Fatalf("load btrfs: %v", err)
	}
}

func TestLoaderSwapNeedsAllThreeTools(t *testing.T) {
	dir := t.TempDir()
	fakeTool(t, dir, "mkswap")
	fakeTool(t, dir, "swapon")
	t.Setenv("PATH", dir)

	if _, err := testLoader(t)(backend.Spec{Kind: backend.Swap}); err == nil {
		t.Fatal("load succeeded without swapoff")
	}

	fakeTool(t, dir, "swapoff")
	if _, err := testLoader(t)(backend.Spec{Kind: backend.Swap}); err != nil {
		t.Fatalf("load swap: %v", err)
	}
}

func TestLoaderUnknownKind(t *testing.T) {
	_, err := testLoader(t)(backend.Spec{Kind: backend.Kind("zfs")})
	if err == nil {
		t.Fatal("load succeeded for unknown kind")
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		t.Error("unknown kind should fail before tool resolution")
	}
}
