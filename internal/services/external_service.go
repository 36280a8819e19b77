package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/events"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/vo"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// CreateExternalReferenceInput 为创建外部引用条目的服务层输入。
type CreateExternalReferenceInput struct {
	Title               string
	Description         *string
	Tags                []string
	Visibility          po.Visibility
	AccessTier          po.AccessTier
	ExternalVideoID     string
	ExternalChannelID   *string
	ExternalPlaylistRef *string
	DurationSeconds     *int32
	ThumbnailRef        *string
	LegacyImport        bool
}

// ExternalReferenceService 负责外部托管视频的条目创建。
type ExternalReferenceService struct {
	repo      EntryRepo
	outbox    OutboxRepo
	txManager txmanager.Manager
	log       *log.Helper
}

// NewExternalReferenceService 创建 ExternalReferenceService。
func NewExternalReferenceService(repo EntryRepo, outbox OutboxRepo, txManager txmanager.Manager, logger log.Logger) (*ExternalReferenceService, error) {
	switch {
	case repo == nil:
		return nil, errors.New("external reference service: repository is required")
	case outbox == nil:
		return nil, errors.New("external reference service: outbox is required")
	case txManager == nil:
		return nil, errors.New("external reference service: tx manager is required")
	}
	return &ExternalReferenceService{
		repo:      repo,
		outbox:    outbox,
		txManager: txManager,
		log:       log.NewHelper(logger),
	}, nil
}

// CreateExternalReference 创建外部引用条目，external_video_id 在未删除行内唯一。
func (s *ExternalReferenceService) CreateExternalReference(ctx context.Context, input CreateExternalReferenceInput) (*vo.EntryView, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ValidationError("title_required", "title is required")
	}
	externalID := strings.TrimSpace(input.ExternalVideoID)
	if externalID == "" {
		return nil, ValidationError("external_video_id_required", "external_video_id is required")
	}
	if input.Visibility == "" {
		input.Visibility = po.VisibilityUnlisted
	}
	if input.AccessTier == "" {
		input.AccessTier = po.TierFree
	}

	entry := &po.Entry{
		EntryID:         uuid.New(),
		Source:          po.SourceExternalReference,
		Status:          po.StatusDraft,
		Visibility:      input.Visibility,
		AccessTier:      input.AccessTier,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		DurationSeconds: input.DurationSeconds,
		ThumbnailRef:    input.ThumbnailRef,
		Tags:            input.Tags,
		LegacyImport:    input.LegacyImport,
		External: &po.ExternalReference{
			ExternalVideoID:     externalID,
			ExternalChannelID:   input.ExternalChannelID,
			ExternalPlaylistRef: input.ExternalPlaylistRef,
		},
	}

	if err := EnforceInvariants(nil, entry); err != nil {
		return nil, err
	}

	txErr := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		if _, repoErr := s.repo.Insert(txCtx, sess, entry); repoErr != nil {
			return repoErr
		}
		event, buildErr := events.NewEntryEvent(events.KindEntryCreated, entry, uuid.New(), entry.CreatedAt)
		if buildErr != nil {
			return fmt.Errorf("build entry created event: %w", buildErr)
		}
		return s.outbox.Enqueue(txCtx, sess, event)
	})
	if txErr != nil {
		if errors.Is(txErr, repositories.ErrExternalVideoIDTaken) {
			return nil, ConflictError(fmt.Sprintf("external_video_id %s is already referenced by a live entry", externalID))
		}
		s.log.WithContext(ctx).Errorf("create external reference failed: external_video_id=%s err=%v", externalID, txErr)
		return nil, fmt.Errorf("create external reference: %w", txErr)
	}

	s.log.WithContext(ctx).Infof("created external entry: entry_id=%s external_video_id=%s", entry.EntryID, externalID)
	return vo.NewEntryView(entry), nil
}
