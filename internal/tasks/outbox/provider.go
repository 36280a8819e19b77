package outbox

import (
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
)

// ProvidePublisherTask 将共享仓储与 Pub/Sub 发布器包装为 Outbox 发布任务。
func ProvidePublisherTask(
	repo *repositories.OutboxRepository,
	publisher gcpubsub.Publisher,
	pubCfg gcpubsub.Config,
	cfg outboxcfg.Config,
	logger log.Logger,
) *PublisherTask {
	if repo == nil || logger == nil {
		return nil
	}
	if pubCfg.TopicID == "" {
		return nil
	}

	meter := otel.GetMeterProvider().Meter("ingestion.outbox")
	return NewPublisherTask(repo, publisher, cfg.Publisher, logger, meter)
}
