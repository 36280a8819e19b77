package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/events"

	outboxpkg "github.com/bionicotaku/lingo-utils/outbox"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/outbox/store"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository 提供写入 Outbox 表的能力，确保与 TxManager Session 协作。
// 底层复用 lingo-utils 的 outbox store，publisher 任务从同一张表消费。
type OutboxRepository struct {
	delegate *store.Repository
	log      *log.Helper
}

// NewOutboxRepository 构造 Repository。
func NewOutboxRepository(db *pgxpool.Pool, logger log.Logger, cfg outboxcfg.Config) *OutboxRepository {
	storeRepo, err := outboxpkg.NewRepository(db, logger, outboxpkg.RepositoryOptions{Schema: cfg.Schema})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init outbox repository failed", "error", err)
		storeRepo = store.NewRepository(db, logger)
	}
	return &OutboxRepository{
		delegate: storeRepo,
		log:      log.NewHelper(logger),
	}
}

// Enqueue 在指定事务内插入领域事件，载荷编码为 JSON，
// attributes 写入 headers 供 publisher 原样透传。
func (r *OutboxRepository) Enqueue(ctx context.Context, sess txmanager.Session, event *events.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("enqueue outbox event: event is nil")
	}

	payload, err := events.MarshalPayload(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	headers := events.BuildAttributes(event, events.SchemaVersionV1, events.TraceIDFromContext(ctx))

	msg := store.Message{
		EventID:       event.EventID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.Kind.String(),
		Payload:       payload,
		Headers:       headers,
		AvailableAt:   time.Now().UTC(),
	}
	if err := r.delegate.Enqueue(ctx, sess, msg); err != nil {
		r.log.WithContext(ctx).Errorf("insert outbox event failed: event_id=%s err=%v", event.EventID, err)
		return fmt.Errorf("insert outbox event: %w", err)
	}

	r.log.WithContext(ctx).Debugf("outbox event enqueued: type=%s aggregate=%s", event.Kind, event.AggregateID)
	return nil
}

// Shared 暴露底层 store repository，供 publisher 任务构造时复用。
func (r *OutboxRepository) Shared() *store.Repository {
	return r.delegate
}
