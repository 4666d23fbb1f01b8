package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"lpFarm/internal/api"
	"lpFarm/internal/config"
	"lpFarm/internal/metrics"
	"lpFarm/internal/runtime"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}

	engine, err := runScenario(ctx, cfg.SimulateConfig, logger, runtime.WithRecorder(recorder))
	if err != nil {
		return err
	}

	server := api.NewServer(api.Deps{
		Catalog:   engine,
		Pricer:    engine.Oracle,
		Converter: engine.Converter,
		Pool:      engine.Pool,
		Journal:   engine.Runtime,
		Units:     engine.Units(),
		Gatherer:  reg,
		Observer:  recorder,
	}, logger.Named("api"))
	return server.Run(ctx, cfg.Listen)
}
