package finalize

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/outbox/inbox"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// Runner 负责消费 GCS OBJECT_FINALIZE 通知。
type Runner struct {
	delegate *inbox.Runner[Event]
}

// RunnerParams 注入构建 Runner 所需的依赖。
type RunnerParams struct {
	Subscriber gcpubsub.Subscriber
	InboxRepo  *repositories.InboxRepository
	Finalize   *services.FinalizeService
	TxManager  txmanager.Manager
	Bucket     string
	Logger     log.Logger
	Config     config.InboxConfig
}

// NewRunner 构造对象落位事件 Runner。
func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Subscriber == nil {
		return nil, fmt.Errorf("finalize: subscriber is required")
	}
	if params.InboxRepo == nil {
		return nil, fmt.Errorf("finalize: inbox repository is required")
	}
	if params.Finalize == nil {
		return nil, fmt.Errorf("finalize: finalize service is required")
	}
	if params.TxManager == nil {
		return nil, fmt.Errorf("finalize: transaction manager is required")
	}

	handler := NewHandler(params.Finalize, params.Bucket, params.Logger)
	decoder := newDecoder()

	delegate, err := inbox.NewRunner[Event](inbox.RunnerParams[Event]{
		Store:      params.InboxRepo.Shared(),
		Subscriber: params.Subscriber,
		TxManager:  params.TxManager,
		Decoder:    decoder,
		Handler:    handler,
		Config:     params.Config,
		Logger:     params.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{delegate: delegate}, nil
}

// Run 启动消费循环。
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.delegate == nil {
		return nil
	}
	return r.delegate.Run(ctx)
}
