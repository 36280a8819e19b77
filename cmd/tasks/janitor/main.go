// Package main 提供过期预约清理任务的独立进程入口。
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
	janitortask "github.com/bionicotaku/lingo-services-ingestion/internal/tasks/janitor"

	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

type janitorTaskApp struct {
	Sweeper *janitortask.Sweeper
	Logger  log.Logger
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireJanitorTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	if app.Sweeper == nil {
		helper.Warn("janitor sweeper disabled (initialization failed)")
		return
	}

	helper.Info("starting reservation janitor")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Sweeper.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("janitor stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("janitor stopped")
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
