// Package modules builds the production loader for the backend registry.
// Loading a backend means resolving its external tool: a backend whose tool
// is not installed fails to load, and the registry records that instead of
// letting calls fail later at dispatch time.
package modules

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/btrfs"
	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/internal/crypto"
	"github.com/jfarrand/diskwright/internal/globalconf"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/internal/swap"
	"github.com/jfarrand/diskwright/pkg/backend"
)

func defaultTool(kind backend.Kind) string {
	switch kind {
	case backend.LVM:
		return lvm.DefaultTool
	case backend.Btrfs:
		return btrfs.DefaultTool
	case backend.Crypto:
		return crypto.DefaultTool
	case backend.Swap:
		return swap.DefaultTool
	}
	return ""
}

// resolve finds the executable for a spec: the explicit path when given,
// the kind's default tool on PATH otherwise.
func resolve(spec backend.Spec) (string, error) {
	name := spec.Path
	if name == "" {
		name = defaultTool(spec.Kind)
	}
	if name == "" {
		return "", fmt.Errorf("unknown backend kind %q", spec.Kind)
	}
	tool, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("resolve tool %q: %w", name, err)
	}
	return tool, nil
}

// Loader returns a registry.Loader constructing the compiled-in backends.
// run executes their external tools and conf supplies the LVM global
// configuration.
func Loader(run cmdexec.Runner, conf *globalconf.Store, logger *zap.Logger) registry.Loader {
	return func(spec backend.Spec) (backend.Backend, error) {
		tool, err := resolve(spec)
		if err != nil {
			return nil, err
		}

		switch spec.Kind {
		case backend.LVM:
			return lvm.New(tool, run, conf, logger), nil
		case backend.Btrfs:
			mkfsTool, err := exec.LookPath(btrfs.DefaultMkfsTool)
			if err != nil {
				return nil, fmt.Errorf("resolve tool %q: %w", btrfs.DefaultMkfsTool, err)
			}
			return btrfs.New(tool, mkfsTool, run, logger), nil
		case backend.Crypto:
			return crypto.New(tool, run, logger), nil
		case backend.Swap:
			// the backend shells out to all three swap tools
			for _, name := range []string{"swapon", "swapoff"} {
				if _, err := exec.LookPath(name); err != nil {
					return nil, fmt.Errorf("resolve tool %q: %w", name, err)
				}
			}
			return swap.New(tool, run, logger), nil
		}
		return nil, fmt.Errorf("unknown backend kind %q", spec.Kind)
	}
}
