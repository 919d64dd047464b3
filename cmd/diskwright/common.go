package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/internal/config"
	"github.com/jfarrand/diskwright/internal/globalconf"
	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/modules"
	"github.com/jfarrand/diskwright/internal/output"
	"github.com/jfarrand/diskwright/internal/registry"
)

// runtime holds the assembled stack for one CLI invocation.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *registry.Registry
	journal  *history.Journal
}

// newRuntime loads configuration and initializes backends best-effort.
// Backends whose tools are missing stay unloaded; individual operations
// report that when dispatched. Logging goes to stderr so formatted output
// on stdout stays parseable.
func newRuntime() (*runtime, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logCfg.OutputPaths = []string{"stderr"}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	journal, err := history.Open(cfg.Journal.Path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invocation journal unavailable: %v\n", err)
		journal = nil
	}

	conf := globalconf.New()
	conf.Set(cfg.LVM.GlobalConfig)

	execOpts := []cmdexec.Option{}
	if journal != nil {
		execOpts = append(execOpts, cmdexec.WithRecorder(journal))
	}
	exec := cmdexec.New(logger, execOpts...)

	reg := registry.New(modules.Loader(exec, conf, logger), logger)
	reg.TryInit(cfg.Specs())

	return &runtime{cfg: cfg, logger: logger, registry: reg, journal: journal}, nil
}

func (rt *runtime) Close() {
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Warn("close journal", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(flagOutput),
		NoHeaders: flagNoHeaders,
	})
}
