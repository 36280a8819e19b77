package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/events"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/vo"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// UpdateMetadataInput 描述可更新的条目元数据字段，nil 表示不修改。
type UpdateMetadataInput struct {
	EntryID           uuid.UUID
	Title             *string
	Description       *string
	Tags              []string
	Visibility        *po.Visibility
	AccessTier        *po.AccessTier
	DurationSeconds   *int32
	ThumbnailRef      *string
	MetadataCompleted *bool
}

// LifecycleService 承载条目生命周期的全部写路径：
// 发布、归档、软删除与元数据更新。
type LifecycleService struct {
	repo      EntryRepo
	outbox    OutboxRepo
	txManager txmanager.Manager
	log       *log.Helper
	now       func() time.Time
}

// NewLifecycleService 创建 LifecycleService。
func NewLifecycleService(repo EntryRepo, outbox OutboxRepo, txManager txmanager.Manager, logger log.Logger) (*LifecycleService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("lifecycle service: repository is required")
	case outbox == nil:
		return nil, errors.New("lifecycle service: outbox is required")
	case txManager == nil:
		return nil, errors.New("lifecycle service: tx manager is required")
	}
	return &LifecycleService{
		repo:      repo,
		outbox:    outbox,
		txManager: txManager,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}, nil
}

// Publish 将草稿条目发布。未满足发布门槛时返回 PublishGateError，
// 指明第一个未达成的条件。
func (s *LifecycleService) Publish(ctx context.Context, entryID uuid.UUID) (*vo.EntryView, error) {
	return s.transition(ctx, entryID, events.KindEntryPublished, func(prev *po.Entry) (*po.Entry, error) {
		if prev.Status == po.StatusArchived {
			return nil, ConflictError("archived entry cannot be published")
		}
		if prev.Status == po.StatusPublished {
			return nil, ConflictError("entry is already published")
		}
		if err := checkPublishGate(prev); err != nil {
			return nil, err
		}
		next := prev.Clone()
		next.Status = po.StatusPublished
		publishedAt := s.now().UTC()
		next.PublishedAt = &publishedAt
		return next, nil
	})
}

// Archive 归档条目，draft 与 published 均可进入 archived。
// 未决的上传预约不可归档：pending 键只在 draft 状态有效，
// 放弃的预约走软删除（janitor 或调用方），以释放预约键。
func (s *LifecycleService) Archive(ctx context.Context, entryID uuid.UUID) (*vo.EntryView, error) {
	return s.transition(ctx, entryID, events.KindEntryArchived, func(prev *po.Entry) (*po.Entry, error) {
		if prev.Status == po.StatusArchived {
			return nil, ConflictError("entry is already archived")
		}
		if prev.IsPendingUpload() {
			return nil, ConflictError("entry with a pending upload cannot be archived; delete the reservation instead")
		}
		next := prev.Clone()
		next.Status = po.StatusArchived
		return next, nil
	})
}

// SoftDelete 软删除条目。与生命周期状态正交，任何状态均可删除。
func (s *LifecycleService) SoftDelete(ctx context.Context, entryID uuid.UUID) (*vo.EntryView, error) {
	return s.transition(ctx, entryID, events.KindEntryDeleted, func(prev *po.Entry) (*po.Entry, error) {
		if prev.IsDeleted() {
			return nil, ConflictError("entry is already deleted")
		}
		next := prev.Clone()
		deletedAt := s.now().UTC()
		next.DeletedAt = &deletedAt
		return next, nil
	})
}

// ReclaimExpiredReservation 软删除超过 cutoff 仍未确认的上传预约。
// 行锁内复核 pending 状态，与并发 finalize 竞争时返回 ConflictError。
func (s *LifecycleService) ReclaimExpiredReservation(ctx context.Context, entryID uuid.UUID, cutoff time.Time) (*vo.EntryView, error) {
	return s.transition(ctx, entryID, events.KindEntryDeleted, func(prev *po.Entry) (*po.Entry, error) {
		if !prev.IsPendingUpload() {
			return nil, ConflictError("entry no longer holds a pending reservation")
		}
		if prev.CreatedAt.After(cutoff) {
			return nil, ConflictError("reservation has not expired yet")
		}
		next := prev.Clone()
		deletedAt := s.now().UTC()
		next.DeletedAt = &deletedAt
		return next, nil
	})
}

// UpdateMetadata 更新条目的展示元数据。信任字段不在可更新集合内，
// 更新仍经过 Guard 与 Enforcer 兜底。
func (s *LifecycleService) UpdateMetadata(ctx context.Context, input UpdateMetadataInput) (*vo.EntryView, error) {
	if !hasMetadataUpdates(input) {
		return nil, ValidationError("no_fields", "no fields to update")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ValidationError("title_required", "title cannot be empty")
	}
	if input.DurationSeconds != nil && *input.DurationSeconds <= 0 {
		return nil, ValidationError("duration", "duration_seconds must be positive")
	}

	return s.transition(ctx, input.EntryID, events.KindEntryUpdated, func(prev *po.Entry) (*po.Entry, error) {
		next := prev.Clone()
		if input.Title != nil {
			next.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			next.Description = input.Description
		}
		if input.Tags != nil {
			next.Tags = input.Tags
		}
		if input.Visibility != nil {
			next.Visibility = *input.Visibility
		}
		if input.AccessTier != nil {
			next.AccessTier = *input.AccessTier
		}
		if input.DurationSeconds != nil {
			next.DurationSeconds = input.DurationSeconds
		}
		if input.ThumbnailRef != nil {
			next.ThumbnailRef = input.ThumbnailRef
		}
		if input.MetadataCompleted != nil {
			next.MetadataCompleted = *input.MetadataCompleted
		}
		return next, nil
	})
}

// transition 在单个事务内执行 读取-计算-守卫-校验-写入-事件 的标准序列。
func (s *LifecycleService) transition(ctx context.Context, entryID uuid.UUID, kind events.Kind, apply func(prev *po.Entry) (*po.Entry, error)) (*vo.EntryView, error) {
	if entryID == uuid.Nil {
		return nil, ValidationError("entry_id_required", "entry_id is required")
	}

	var result *po.Entry
	txErr := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		prev, err := s.repo.GetByIDForUpdate(txCtx, sess, entryID)
		if err != nil {
			return err
		}
		if prev.IsDeleted() && kind != events.KindEntryDeleted {
			return ErrEntryNotFound
		}
		next, err := apply(prev)
		if err != nil {
			return err
		}
		if err := GuardImmutableFields(prev, next); err != nil {
			return err
		}
		if err := EnforceInvariants(prev, next); err != nil {
			return err
		}
		if _, err := s.repo.Update(txCtx, sess, next); err != nil {
			return err
		}
		event, buildErr := events.NewEntryEvent(kind, next, uuid.New(), s.now())
		if buildErr != nil {
			return fmt.Errorf("build %s event: %w", kind, buildErr)
		}
		if err := s.outbox.Enqueue(txCtx, sess, event); err != nil {
			return err
		}
		result = next
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		if kerr := asKratos(txErr); kerr != nil {
			return nil, kerr
		}
		s.log.WithContext(ctx).Errorf("entry transition failed: entry_id=%s kind=%s err=%v", entryID, kind, txErr)
		return nil, fmt.Errorf("entry transition %s: %w", kind, txErr)
	}

	s.log.WithContext(ctx).Infof("entry transition applied: entry_id=%s kind=%s status=%s", entryID, kind, result.Status)
	return vo.NewEntryView(result), nil
}

// checkPublishGate 按固定顺序检查发布门槛，返回首个未满足的条件。
func checkPublishGate(entry *po.Entry) error {
	if !entry.MetadataCompleted {
		return PublishGateError("metadata_completed", "entry metadata is not completed")
	}
	if entry.Source == po.SourceUpload && !entry.LegacyImport {
		if entry.Upload == nil || entry.Upload.HostedKey == nil {
			return PublishGateError("asset_resolved", "uploaded asset is not finalized")
		}
		if entry.Upload.VerifiedChecksum == nil {
			return PublishGateError("checksum_verified", "uploaded asset has no verified checksum")
		}
	}
	return nil
}

func hasMetadataUpdates(input UpdateMetadataInput) bool {
	return input.Title != nil ||
		input.Description != nil ||
		input.Tags != nil ||
		input.Visibility != nil ||
		input.AccessTier != nil ||
		input.DurationSeconds != nil ||
		input.ThumbnailRef != nil ||
		input.MetadataCompleted != nil
}
