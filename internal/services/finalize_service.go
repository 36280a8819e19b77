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

// ErrObjectNotFound 表示 pending key 指向的对象在存储中不存在。
var ErrObjectNotFound = errors.New("stored object not found")

// ObjectStat 描述存储侧观测到的对象属性。
type ObjectStat struct {
	MD5Base64   string
	SizeBytes   int64
	ContentType string
}

// ObjectInspector 定义查询对象属性的能力。
// 对象不存在时返回 ErrObjectNotFound。
type ObjectInspector interface {
	Stat(ctx context.Context, bucket, objectName string) (*ObjectStat, error)
}

// FinalizeService 实现两阶段上传协议的 Finalize 阶段。
type FinalizeService struct {
	repo      EntryRepo
	outbox    OutboxRepo
	inspector ObjectInspector
	txManager txmanager.Manager
	bucket    string
	log       *log.Helper
	now       func() time.Time
}

// NewFinalizeService 创建 FinalizeService。
func NewFinalizeService(repo EntryRepo, outbox OutboxRepo, inspector ObjectInspector, txManager txmanager.Manager, bucket string, logger log.Logger) (*FinalizeService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("finalize service: repository is required")
	case outbox == nil:
		return nil, errors.New("finalize service: outbox is required")
	case inspector == nil:
		return nil, errors.New("finalize service: inspector is required")
	case txManager == nil:
		return nil, errors.New("finalize service: tx manager is required")
	case bucket == "":
		return nil, errors.New("finalize service: bucket is required")
	}
	return &FinalizeService{
		repo:      repo,
		outbox:    outbox,
		inspector: inspector,
		txManager: txManager,
		bucket:    bucket,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}, nil
}

// FinalizeUpload 确认预约的资产已落位：行锁定条目、核对对象摘要与大小、
// 原子地将 pending key 置换为 hosted key 并写入 verified_checksum。
// observed 非空时优先采用存储通知携带的属性，否则实时 Stat。
// 完整性不符返回 IntegrityMismatchError，pending 行保持可重试。
func (s *FinalizeService) FinalizeUpload(ctx context.Context, entryID uuid.UUID, observed *ObjectStat) (*vo.EntryView, error) {
	if entryID == uuid.Nil {
		return nil, ValidationError("entry_id_required", "entry_id is required")
	}

	var finalized *po.Entry
	txErr := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		prev, err := s.repo.GetByIDForUpdate(txCtx, sess, entryID)
		if err != nil {
			return err
		}
		next, err := s.resolve(txCtx, prev, observed)
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
		event, buildErr := events.NewEntryEvent(events.KindEntryFinalized, next, uuid.New(), s.now())
		if buildErr != nil {
			return fmt.Errorf("build entry finalized event: %w", buildErr)
		}
		if err := s.outbox.Enqueue(txCtx, sess, event); err != nil {
			return err
		}
		finalized = next
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		if kerr := asKratos(txErr); kerr != nil {
			return nil, kerr
		}
		s.log.WithContext(ctx).Errorf("finalize upload failed: entry_id=%s err=%v", entryID, txErr)
		return nil, fmt.Errorf("finalize upload: %w", txErr)
	}

	s.log.WithContext(ctx).Infof("finalized upload: entry_id=%s hosted_key=%s", entryID, *finalized.Upload.HostedKey)
	return vo.NewEntryView(finalized), nil
}

// FinalizeByObjectKey 通过 pending object key 定位条目后执行 finalize，
// 存储通知回调走这条路径。
func (s *FinalizeService) FinalizeByObjectKey(ctx context.Context, objectName string, observed *ObjectStat) (*vo.EntryView, error) {
	if objectName == "" {
		return nil, ValidationError("object_name_required", "object name is required")
	}
	entry, err := s.repo.GetByPendingObjectKey(ctx, nil, objectName)
	if err != nil {
		if errors.Is(err, repositories.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("lookup entry by pending key: %w", err)
	}
	return s.FinalizeUpload(ctx, entry.EntryID, observed)
}

// resolve 在行锁内计算 finalize 后的条目状态。
func (s *FinalizeService) resolve(ctx context.Context, prev *po.Entry, observed *ObjectStat) (*po.Entry, error) {
	if prev.IsDeleted() {
		return nil, ErrEntryNotFound
	}
	if prev.Source != po.SourceUpload || prev.Upload == nil {
		return nil, ConflictError("entry is not an upload entry")
	}
	if prev.Upload.HostedKey != nil {
		return nil, ConflictError("entry is already finalized")
	}
	if prev.Upload.PendingObjectKey == nil {
		return nil, ConflictError("entry has no pending reservation")
	}
	if prev.Upload.TrustMode == nil {
		return nil, ValidationError("trust_mode", "entry has no trust mode")
	}
	pendingKey := *prev.Upload.PendingObjectKey

	stat := observed
	if stat == nil {
		var err error
		stat, err = s.inspector.Stat(ctx, s.bucket, pendingKey)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return nil, IntegrityMismatchError("no stored object found at pending key")
			}
			return nil, StorageError("failed to stat stored object", err)
		}
	}

	digest, err := NormalizeDigest(stat.MD5Base64)
	if err != nil {
		return nil, StorageError("object digest unavailable", err)
	}
	verified, err := ResolveVerifiedChecksum(*prev.Upload.TrustMode, prev.Upload.DeclaredChecksum, digest)
	if err != nil {
		return nil, err
	}
	if prev.Upload.DeclaredFileSize != nil && *prev.Upload.DeclaredFileSize != stat.SizeBytes {
		return nil, IntegrityMismatchError(fmt.Sprintf("declared size %d does not match stored object size %d", *prev.Upload.DeclaredFileSize, stat.SizeBytes))
	}

	next := prev.Clone()
	// hosted key 沿用对象实际落位的路径，资产本身不搬移。
	hostedKey := pendingKey
	next.Upload.PendingObjectKey = nil
	next.Upload.HostedKey = &hostedKey
	next.Upload.VerifiedChecksum = &verified
	if mime := strings.ToLower(strings.TrimSpace(stat.ContentType)); mime != "" {
		next.Upload.MimeType = &mime
	} else {
		next.Upload.MimeType = prev.Upload.DeclaredMimeType
	}
	return next, nil
}

// asKratos 保留服务层已经定级的 kratos 错误，避免包裹后丢失 reason。
func asKratos(err error) error {
	if err == nil {
		return nil
	}
	for _, reason := range []string{
		ReasonValidationFailed, ReasonConflict, ReasonImmutableField,
		ReasonIntegrityMismatch, ReasonPublishGate, ReasonStorageFailure, ReasonEntryNotFound,
	} {
		if reasonIs(err, reason) {
			return err
		}
	}
	return nil
}
