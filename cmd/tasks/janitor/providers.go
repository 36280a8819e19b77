package main

import (
	"fmt"

	janitortask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/janitor"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

func provideTxManager(pool *pgxpool.Pool, cfg txmanager.Config, logger log.Logger) (txmanager.Manager, error) {
	return txmanager.NewManager(pool, cfg, txmanager.Dependencies{Logger: logger})
}

func newJanitorTaskApp(logger log.Logger, sweeper *janitortask.Sweeper) (*janitorTaskApp, error) {
	if sweeper == nil {
		return &janitorTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &janitorTaskApp{
		Sweeper: sweeper,
		Logger:  logger,
	}, nil
}
