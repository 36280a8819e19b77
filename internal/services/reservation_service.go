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

// UploadSigner 定义生成 Resumable Upload 签名 URL 的能力。
type UploadSigner interface {
	SignedResumableInitURL(ctx context.Context, bucket, objectName, contentType string, ttl time.Duration) (string, time.Time, error)
}

// ReserveUploadInput 为预约阶段的服务层输入。
type ReserveUploadInput struct {
	Title            string
	Description      *string
	Tags             []string
	Visibility       po.Visibility
	AccessTier       po.AccessTier
	TrustMode        po.TrustMode
	DeclaredChecksum *string
	DeclaredFileSize *int64
	DeclaredMimeType *string
	OriginalFilename *string
}

// ReservationService 实现两阶段上传协议的 Reserve 阶段。
type ReservationService struct {
	repo      EntryRepo
	outbox    OutboxRepo
	signer    UploadSigner
	txManager txmanager.Manager
	bucket    string
	ttl       time.Duration
	maxBytes  int64
	log       *log.Helper
	now       func() time.Time
}

// 上传 MIME 允许清单。octet-stream 兜底客户端探测失败的场景。
var allowedUploadMIME = map[string]struct{}{
	"video/mp4":                {},
	"video/quicktime":          {},
	"video/x-m4v":              {},
	"video/webm":               {},
	"video/3gpp":               {},
	"video/3gpp2":              {},
	"application/octet-stream": {},
}

// NewReservationService 创建 ReservationService。
func NewReservationService(repo EntryRepo, outbox OutboxRepo, signer UploadSigner, txManager txmanager.Manager, bucket string, ttl time.Duration, maxBytes int64, logger log.Logger) (*ReservationService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("reservation service: repository is required")
	case outbox == nil:
		return nil, errors.New("reservation service: outbox is required")
	case signer == nil:
		return nil, errors.New("reservation service: signer is required")
	case txManager == nil:
		return nil, errors.New("reservation service: tx manager is required")
	case bucket == "":
		return nil, errors.New("reservation service: bucket is required")
	case ttl <= 0:
		return nil, errors.New("reservation service: ttl must be positive")
	case maxBytes <= 0:
		return nil, errors.New("reservation service: max upload size must be positive")
	}
	return &ReservationService{
		repo:      repo,
		outbox:    outbox,
		signer:    signer,
		txManager: txManager,
		bucket:    bucket,
		ttl:       ttl,
		maxBytes:  maxBytes,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}, nil
}

// ReserveUpload 预约一次上传：生成条目与唯一的 pending object key，
// 在同一事务内落库草稿行与 entry.reserved 事件，返回签名的续传初始化 URL。
func (s *ReservationService) ReserveUpload(ctx context.Context, input ReserveUploadInput) (*vo.ReservationResult, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	entryID := uuid.New()
	// 对象键带独立 nonce，同一条目重复预约也不会撞键。
	pendingKey := fmt.Sprintf("raw_media/%s/%s", entryID, uuid.New())
	mode := input.TrustMode

	entry := &po.Entry{
		EntryID:           entryID,
		Source:            po.SourceUpload,
		Status:            po.StatusDraft,
		Visibility:        input.Visibility,
		AccessTier:        input.AccessTier,
		Title:             strings.TrimSpace(input.Title),
		Description:       input.Description,
		Tags:              input.Tags,
		MetadataCompleted: false,
		Upload: &po.UploadBinding{
			PendingObjectKey: &pendingKey,
			TrustMode:        &mode,
			DeclaredChecksum: input.DeclaredChecksum,
			DeclaredFileSize: input.DeclaredFileSize,
			DeclaredMimeType: input.DeclaredMimeType,
			OriginalFilename: input.OriginalFilename,
		},
	}

	if err := EnforceInvariants(nil, entry); err != nil {
		return nil, err
	}

	contentType := ""
	if input.DeclaredMimeType != nil {
		contentType = *input.DeclaredMimeType
	}
	signedURL, expiresAt, err := s.signer.SignedResumableInitURL(ctx, s.bucket, pendingKey, contentType, s.ttl)
	if err != nil {
		s.log.WithContext(ctx).Errorf("sign resumable init url failed: entry_id=%s err=%v", entryID, err)
		return nil, StorageError("failed to sign upload url", err)
	}

	txErr := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		if _, repoErr := s.repo.Insert(txCtx, sess, entry); repoErr != nil {
			return repoErr
		}
		event, buildErr := events.NewEntryEvent(events.KindEntryReserved, entry, uuid.New(), entry.CreatedAt)
		if buildErr != nil {
			return fmt.Errorf("build entry reserved event: %w", buildErr)
		}
		return s.outbox.Enqueue(txCtx, sess, event)
	})
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrPendingObjectKeyTaken) {
			return nil, ConflictError("pending object key already reserved")
		}
		s.log.WithContext(ctx).Errorf("reserve upload failed: entry_id=%s err=%v", entryID, txErr)
		return nil, fmt.Errorf("reserve upload: %w", txErr)
	}

	s.log.WithContext(ctx).Infof("reserved upload: entry_id=%s pending_key=%s mode=%s", entryID, pendingKey, mode)
	return &vo.ReservationResult{
		Entry:            vo.NewEntryView(entry),
		PendingObjectKey: pendingKey,
		UploadURL:        signedURL,
		UploadURLExpires: expiresAt,
	}, nil
}

func (s *ReservationService) validateInput(input *ReserveUploadInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ValidationError("title_required", "title is required")
	}
	if input.Visibility == "" {
		input.Visibility = po.VisibilityUnlisted
	}
	if input.AccessTier == "" {
		input.AccessTier = po.TierFree
	}
	input.DeclaredChecksum = NormalizeChecksumInput(input.DeclaredChecksum)
	if err := ValidateDeclaredChecksum(input.TrustMode, input.DeclaredChecksum); err != nil {
		return err
	}
	if input.DeclaredFileSize != nil {
		if *input.DeclaredFileSize <= 0 {
			return ValidationError("file_size", "declared_file_size must be positive")
		}
		if *input.DeclaredFileSize > s.maxBytes {
			return ValidationError("file_size", fmt.Sprintf("declared_file_size exceeds limit of %d bytes", s.maxBytes))
		}
	}
	if input.DeclaredMimeType != nil {
		mime := strings.ToLower(strings.TrimSpace(*input.DeclaredMimeType))
		if _, ok := allowedUploadMIME[mime]; !ok {
			return ValidationError("mime_type", fmt.Sprintf("unsupported declared_mime_type: %s", *input.DeclaredMimeType))
		}
		input.DeclaredMimeType = &mime
	}
	return nil
}
