// Package swap manages swap areas through mkswap(8), swapon(8) and
// swapoff(8).
package swap

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// Tool names. DefaultTool is the one probed when loading the backend.
const (
	DefaultTool = "mkswap"
	swapOnTool  = "swapon"
	swapOffTool = "swapoff"
)

// Backend executes swap operations through the external swap tools.
type Backend struct {
	mkswapTool string
	logger     *zap.Logger
	run        cmdexec.Runner
}

var (
	_ backend.Backend   = (*Backend)(nil)
	_ backend.Baseliner = (*Backend)(nil)
)

// New creates a swap backend. tool is the mkswap binary; swapon and swapoff
// are taken from PATH.
func New(tool string, run cmdexec.Runner, logger *zap.Logger) *Backend {
	return &Backend{mkswapTool: tool, run: run, logger: logger}
}

func (b *Backend) Kind() backend.Kind { return backend.Swap }

func (b *Backend) Baseline() []backend.Func {
	return []backend.Func{"mkswap", "swapon", "swapoff"}
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
		"mkswap":  b.MkSwap,
		"swapon":  b.SwapOn,
		"swapoff": b.SwapOff,
	}
}

// MkSwap formats device as a swap area, labeled when label is non-empty.
func (b *Backend) MkSwap(ctx context.Context, device, label string) error {
	args := []string{b.mkswapTool, "-f"}
	if label != "" {
		args = append(args, "-L", label)
	}
	args = append(args, device)
	return b.run.Run(ctx, args)
}

// SwapOn activates the swap area on device. priority below zero leaves the
// kernel default in place.
func (b *Backend) SwapOn(ctx context.Context, device string, priority int) error {
	args := []string{swapOnTool}
	if priority >= 0 {
		args = append(args, "-p", strconv.Itoa(priority))
	}
	args = append(args, device)
	return b.run.Run(ctx, args)
}

// SwapOff deactivates the swap area on device.
func (b *Backend) SwapOff(ctx context.Context, device string) error {
	return b.run.Run(ctx, []string{swapOffTool, device})
}
