// Package crypto drives cryptsetup(8) for LUKS devices. Key material is
// always handed to cryptsetup on stdin; it never appears in argv where the
// process table or the invocation journal could expose it.
package crypto

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// DefaultTool is the cryptsetup binary.
const DefaultTool = "cryptsetup"

// Backend executes LUKS operations through an external cryptsetup binary.
type Backend struct {
	tool   string
	run    cmdexec.Runner
	logger *zap.Logger
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Baseliner = (*Backend)(nil)
	_ backend.Versioner = (*Backend)(nil)
)

// New creates a crypto backend running tool.
func New(tool string, run cmdexec.Runner, logger *zap.Logger) *Backend {
	return &Backend{tool: tool, run: run, logger: logger}
}

func (b *Backend) Kind() backend.Kind { return backend.Crypto }

func (b *Backend) Baseline() []backend.Func {
	return []backend.Func{"luks_format", "luks_open", "luks_close"}
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
		"luks_format":     b.LUKSFormat,
		"luks_open":       b.LUKSOpen,
		"luks_close":      b.LUKSClose,
		"luks_add_key":    b.LUKSAddKey,
		"luks_remove_key": b.LUKSRemoveKey,
		"luks_status":     b.LUKSStatus,
		"is_luks":         b.IsLUKS,
	}
}

// ToolVersion reports the version string of the cryptsetup binary.
func (b *Backend) ToolVersion(ctx context.Context) (string, error) {
	out, err := b.run.Capture(ctx, []string{b.tool, "--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LUKSFormat formats device as a LUKS container keyed with passphrase.
// cipher and keySize tune the encryption; empty or zero selects the
// cryptsetup default.
func (b *Backend) LUKSFormat(ctx context.Context, device, cipher string, keySize uint64, passphrase string) error {
	args := []string{b.tool, "luksFormat", "--batch-mode", "--key-file=-"}
	if cipher != "" {
		args = append(args, "--cipher="+cipher)
	}
	if keySize != 0 {
		args = append(args, "--key-size="+strconv.FormatUint(keySize, 10))
	}
	args = append(args, device)
	return b.run.RunInput(ctx, args, passphrase)
}

// LUKSOpen opens the LUKS container on device under name.
func (b *Backend) LUKSOpen(ctx context.Context, device, name, passphrase string, readOnly bool) error {
	args := []string{b.tool, "luksOpen", "--key-file=-"}
	if readOnly {
		args = append(args, "--readonly")
	}
	args = append(args, device, name)
	return b.run.RunInput(ctx, args, passphrase)
}

// LUKSClose closes the opened LUKS container name.
func (b *Backend) LUKSClose(ctx context.Context, name string) error {
	return b.run.Run(ctx, []string{b.tool, "luksClose", name})
}

// LUKSAddKey adds newPassphrase as an additional key of the container on
// device, authorized by an existing passphrase. cryptsetup reads both from
// stdin in that order.
func (b *Backend) LUKSAddKey(ctx context.Context, device, passphrase, newPassphrase string) error {
	args := []string{b.tool, "luksAddKey", "--batch-mode", device}
	return b.run.RunInput(ctx, args, passphrase+"\n"+newPassphrase+"\n")
}

// LUKSRemoveKey removes the key slot holding passphrase from the container
// on device.
func (b *Backend) LUKSRemoveKey(ctx context.Context, device, passphrase string) error {
	args := []string{b.tool, "luksRemoveKey", "--batch-mode", device}
	return b.run.RunInput(ctx, args, passphrase)
}

// LUKSStatus reports the status of the opened container name as printed by
// cryptsetup.
func (b *Backend) LUKSStatus(ctx context.Context, name string) (string, error) {
	out, err := b.run.Capture(ctx, []string{b.tool, "status", name})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsLUKS reports whether device holds a LUKS container. A clean non-zero
// exit is a negative answer, not an error.
func (b *Backend) IsLUKS(ctx context.Context, device string) (bool, error) {
	err := b.run.Run(ctx, []string{b.tool, "isLuks", device})
	if err == nil {
		return true, nil
	}
	var cmdErr *cmdexec.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return false, nil
	}
	return false, err
}
