//go:build wireinject
// +build wireinject

// Package main 为 outbox 任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"

	configloader "github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/logger"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	outboxtask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/outbox"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireOutboxTask(context.Context, configloader.Params) (*outboxTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		configloader.ProvideEventPubSubConfig,
		logger.ProviderSet,
		provideObservability,
		database.ProviderSet,
		repositories.ProviderSet,
		gcpubsub.NewComponent,
		gcpubsub.ProvidePublisher,
		outboxtask.ProvidePublisherTask,
		newOutboxTaskApp,
	))
}
