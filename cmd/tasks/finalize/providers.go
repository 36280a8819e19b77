package main

import (
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
	finalizetask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/finalize"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

func provideTxManager(pool *pgxpool.Pool, cfg txmanager.Config, logger log.Logger) (txmanager.Manager, error) {
	return txmanager.NewManager(pool, cfg, txmanager.Dependencies{Logger: logger})
}

func provideFinalizeService(
	repo *repositories.EntryRepository,
	outbox *repositories.OutboxRepository,
	inspector services.ObjectInspector,
	tx txmanager.Manager,
	storageCfg configloader.StorageConfig,
	logger log.Logger,
) (*services.FinalizeService, error) {
	return services.NewFinalizeService(repo, outbox, inspector, tx, storageCfg.Bucket, logger)
}

func newFinalizeTaskApp(logger log.Logger, runner *finalizetask.Runner) (*finalizeTaskApp, error) {
	if runner == nil {
		return &finalizeTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &finalizeTaskApp{
		Runner: runner,
		Logger: logger,
	}, nil
}
