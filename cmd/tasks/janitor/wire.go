//go:build wireinject
// +build wireinject

// Package main 为 janitor 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	configloader "github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/logger"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
	janitortask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/janitor"

	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireJanitorTask(context.Context, configloader.Params) (*janitorTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		logger.ProviderSet,
		provideObservability,
		database.ProviderSet,
		provideTxManager,
		repositories.ProviderSet,
		wire.Bind(new(services.EntryRepo), new(*repositories.EntryRepository)),
		wire.Bind(new(services.OutboxRepo), new(*repositories.OutboxRepository)),
		services.NewLifecycleService,
		janitortask.ProvideSweeper,
		newJanitorTaskApp,
	))
}
