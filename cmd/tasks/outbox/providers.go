package main

import (
	"fmt"

	outboxtask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/outbox"

	"github.com/go-kratos/kratos/v2/log"
)

func newOutboxTaskApp(logger log.Logger, task *outboxtask.PublisherTask) (*outboxTaskApp, error) {
	if task == nil {
		return &outboxTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &outboxTaskApp{
		Task:   task,
		Logger: logger,
	}, nil
}
