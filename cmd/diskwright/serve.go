package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jfarrand/diskwright/internal/cmdexec"
	"github.com/jfarrand/diskwright/internal/config"
	"github.com/jfarrand/diskwright/internal/globalconf"
	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/modules"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diskwright API server",
	Long: `Run the HTTP API server.

Backends are initialized best-effort at startup: a backend whose tool is
missing reports as unloaded in /api/v1/status while the rest keep working.
Every external tool invocation is recorded in the journal and counted in
the /metrics endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("diskwright server starting")

	cfg, err := config.Load(flagConfig)
	if err != nil {
		logger.Error("load configuration", zap.Error(err))
		return err
	}

	journal, err := history.Open(cfg.Journal.Path, logger)
	if err != nil {
		logger.Error("open journal", zap.Error(err))
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	conf := globalconf.New()
	conf.Set(cfg.LVM.GlobalConfig)

	exec := cmdexec.New(logger,
		cmdexec.WithMetrics(cmdexec.NewMetrics(promReg)),
		cmdexec.WithRecorder(journal),
	)

	reg := registry.New(modules.Loader(exec, conf, logger), logger)
	for kind, state := range reg.TryInit(cfg.Specs()) {
		if state.Err != nil {
			logger.Warn("backend unavailable",
				zap.String("kind", string(kind)),
				zap.Error(state.Err))
		}
	}

	srv := server.New(cfg.Server.Addr, reg, journal, promReg, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("diskwright server ready", zap.String("addr", cfg.Server.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("diskwright server stopped")
	return nil
}
