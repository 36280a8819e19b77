package finalize

import (
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// ProvideRunner 装配 Finalize Runner。
func ProvideRunner(
	finalizeSvc *services.FinalizeService,
	inboxRepo *repositories.InboxRepository,
	tx txmanager.Manager,
	sub gcpubsub.Subscriber,
	storageCfg configloader.StorageConfig,
	outboxCfg outboxcfg.Config,
	logger log.Logger,
) *Runner {
	if finalizeSvc == nil || inboxRepo == nil || sub == nil || logger == nil {
		return nil
	}

	runner, err := NewRunner(RunnerParams{
		Subscriber: sub,
		InboxRepo:  inboxRepo,
		Finalize:   finalizeSvc,
		TxManager:  tx,
		Bucket:     storageCfg.Bucket,
		Logger:     logger,
		Config:     outboxCfg.Inbox,
	})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init finalize runner failed", "error", err)
		return nil
	}
	return runner
}
