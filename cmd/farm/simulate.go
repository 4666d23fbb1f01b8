package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpFarm/internal/config"
	"lpFarm/internal/model"
	"lpFarm/internal/report"
	"lpFarm/internal/runtime"
	"lpFarm/internal/simulate"
	"lpFarm/internal/storage"
	"lpFarm/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
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

	engine, err := runScenario(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Report {
		rep, err := report.Build(ctx, engine.Pool, engine.Converter, engine.Units())
		if err != nil {
			return fmt.Errorf("build report: %w", err)
		}
		rep.RunID = engine.Runtime.RunID()
		rep.Timestamp = engine.Clock.Now()
		return report.WriteText(cmd.OutOrStdout(), rep)
	}
	return nil
}

// runScenario deploys and runs the configured scenario, journaling to cfg.Out and,
// when a DSN is set, persisting the final snapshot to Postgres.
func runScenario(ctx context.Context, cfg config.SimulateConfig, logger *zap.Logger, opts ...runtime.Option) (*simulate.Engine, error) {
	if cfg.Scenario == "" {
		return nil, fmt.Errorf("scenario path is required")
	}
	sc, err := simulate.Load(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	sc.Apply(cfg.Overrides)

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var stateStore storage.StateStore
	if cfg.StateFile != "" {
		stateStore = &storage.FileStateStore{Path: cfg.StateFile}
	} else if store != nil {
		stateStore = &storage.DBStateStore{Store: store, Name: "journal:" + cfg.Out}
	}
	if stateStore != nil {
		if prev, ok, err := stateStore.Load(ctx); err != nil {
			return nil, err
		} else if ok {
			logger.Info("previous run found",
				zap.String("run_id", prev.RunID),
				zap.Uint64("last_seq", prev.LastSeq),
				zap.Time("updated_at", prev.UpdatedAt),
			)
		}
	}

	journal := storage.NewJsonlStorage(cfg.Out)
	opts = append(opts, runtime.WithSink(journal))
	engine, err := simulate.New(ctx, sc, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("deploy scenario: %w", err)
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.String("run_id", engine.Runtime.RunID()),
		zap.String("out", journal.Path()),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("steps", len(sc.Steps)),
	)

	results, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Error != "" {
			logger.Info("step reverted as expected", zap.Int("step", res.Index), zap.String("op", res.Op), zap.String("error", res.Error))
		}
	}

	if store != nil {
		snap, err := engine.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if err := snap.Persist(ctx, store); err != nil {
			return nil, err
		}
	}
	if stateStore != nil {
		st := model.JournalState{
			Name:     journal.Path(),
			RunID:    engine.Runtime.RunID(),
			Scenario: cfg.Scenario,
			LastSeq:  engine.Runtime.Seq(),
		}
		if err := stateStore.Save(ctx, st); err != nil {
			return nil, err
		}
	}

	logger.Info("simulate done", zap.Int("steps", len(results)), zap.Uint64("seq", engine.Runtime.Seq()))
	return engine, nil
}
