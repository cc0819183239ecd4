// Command bundlercore is C8: the process entrypoint that wires the
// operation pool (C4) and pool server (C5) for every configured entry point
// into a running process, with logging, pprof, and metrics set up the way
// internal/debug and metrics.NewPrometheus*Metrics expect.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aa-bundler/opcore/core/poolserver"
	"github.com/aa-bundler/opcore/core/uopool"
	"github.com/aa-bundler/opcore/internal/debug"
	opflags "github.com/aa-bundler/opcore/internal/flags"
	"github.com/aa-bundler/opcore/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

const (
	poolFlagCategory    = opflags.PoolCategory
	trackerFlagCategory = opflags.TrackerCategory
)

func main() {
	app := cli.NewApp()
	app.Name = "bundlercore"
	app.Usage = "ERC-4337 operation pool and transaction tracker core"
	app.Flags = append(append(poolFlags(), trackerFlags()...), debug.Flags...)
	app.Before = func(cctx *cli.Context) error {
		return debug.Setup(cctx)
	}
	app.Action = run
	app.After = func(*cli.Context) error {
		debug.Exit()
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	logger := log.Root()

	fileCfg, err := loadFileConfig(cctx.String(configFileFlag.Name))
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	poolConfigs := buildPoolConfigs(cctx, fileCfg)
	if len(poolConfigs) == 0 {
		return fmt.Errorf("no entry points configured: pass --%s or an entry_points config table", entryPointsFlag.Name)
	}

	registry := prometheus.NewRegistry()
	poolMetrics := metrics.NewPrometheusPoolMetrics(registry)

	mempools := make([]poolserver.Mempool, 0, len(poolConfigs))
	for _, cfg := range poolConfigs {
		pool := uopool.NewPool(cfg, poolMetrics, logger.New("entrypoint", cfg.EntryPoint))
		mempools = append(mempools, poolserver.NewPoolMempool(pool, cfg.EntryPoint, nil))
		logger.Info("configured operation pool", "entrypoint", cfg.EntryPoint, "maxSizeBytes", cfg.MaxSizeOfPoolBytes)
	}

	server := poolserver.New(mempools, logger.New("component", "poolserver"))

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()
	go server.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logger.Info("bundlercore started", "entryPoints", len(mempools))
	<-sigCh
	logger.Info("shutting down")
	server.Shutdown()
	return nil
}
