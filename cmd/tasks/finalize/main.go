// Package main 提供 OBJECT_FINALIZE 消费 Runner 的独立进程入口。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	finalizetask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/finalize"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

type finalizeTaskApp struct {
	Runner *finalizetask.Runner
	Logger log.Logger
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireFinalizeTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	if app.Runner == nil {
		helper.Warn("finalize runner disabled (missing messaging.pubsub storage subscription configuration)")
		return
	}

	helper.Info("starting finalize runner")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("finalize runner stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("finalize runner stopped")
}

// provideObservability 初始化 OTel 管线，返回带超时的关闭函数。
func provideObservability(ctx context.Context, cfg obswire.ObservabilityConfig, meta configloader.ServiceMetadata, logger log.Logger) (func(), error) {
	shutdown, err := obswire.Init(ctx, cfg,
		obswire.WithLogger(logger),
		obswire.WithServiceName(meta.Name),
		obswire.WithServiceVersion(meta.Version),
		obswire.WithEnvironment(meta.Environment),
	)
	if err != nil {
		return nil, err
	}
	return func() {
		if shutdown == nil {
			return
		}
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sdCtx); err != nil {
			log.NewHelper(logger).Warnf("shutdown observability: %v", err)
		}
	}, nil
}
