// Package services contains application use case orchestration.
package services

import (
	"context"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/events"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
	"github.com/google/wire"
)

// EntryRepo 抽象条目持久化操作，由 repositories.EntryRepository 实现。
type EntryRepo interface {
	Insert(ctx context.Context, sess txmanager.Session, entry *po.Entry) (*po.Entry, error)
	Update(ctx context.Context, sess txmanager.Session, entry *po.Entry) (*po.Entry, error)
	GetByID(ctx context.Context, sess txmanager.Session, entryID uuid.UUID) (*po.Entry, error)
	GetByIDForUpdate(ctx context.Context, sess txmanager.Session, entryID uuid.UUID) (*po.Entry, error)
	GetByPendingObjectKey(ctx context.Context, sess txmanager.Session, pendingKey string) (*po.Entry, error)
	ListExpiredPending(ctx context.Context, sess txmanager.Session, cutoff time.Time, limit int32) ([]*po.Entry, error)
}

// OutboxRepo 抽象领域事件入队操作。
type OutboxRepo interface {
	Enqueue(ctx context.Context, sess txmanager.Session, event *events.DomainEvent) error
}

// ProviderSet is services providers.
var ProviderSet = wire.NewSet(
	NewReservationService,
	NewExternalReferenceService,
	NewFinalizeService,
	NewLifecycleService,
	NewQueryService,
)
