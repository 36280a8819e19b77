//go:build wireinject
// +build wireinject

// Package main 为 finalize 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	configloader "github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/gcs"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/logger"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
	finalizetask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/finalize"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireFinalizeTask(context.Context, configloader.Params) (*finalizeTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		configloader.ProvideStoragePubSubConfig,
		logger.ProviderSet,
		provideObservability,
		database.ProviderSet,
		provideTxManager,
		gcpubsub.NewComponent,
		gcpubsub.ProvideSubscriber,
		gcs.ProvideObjectInspector,
		repositories.ProviderSet,
		wire.Bind(new(services.EntryRepo), new(*repositories.EntryRepository)),
		wire.Bind(new(services.OutboxRepo), new(*repositories.OutboxRepository)),
		wire.Bind(new(services.ObjectInspector), new(*gcs.ObjectInspector)),
		provideFinalizeService,
		finalizetask.ProvideRunner,
		newFinalizeTaskApp,
	))
}
