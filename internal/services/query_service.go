package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/vo"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// QueryService 提供条目的只读查询。
type QueryService struct {
	repo      EntryRepo
	txManager txmanager.Manager
	log       *log.Helper
}

// NewQueryService 创建 QueryService。
func NewQueryService(repo EntryRepo, txManager txmanager.Manager, logger log.Logger) *QueryService {
	return &QueryService{
		repo:      repo,
		txManager: txManager,
		log:       log.NewHelper(logger),
	}
}

// GetEntry 按 entry_id 查询条目，软删除的行按不存在处理。
func (s *QueryService) GetEntry(ctx context.Context, entryID uuid.UUID) (*vo.EntryView, error) {
	if entryID == uuid.Nil {
		return nil, ValidationError("entry_id_required", "entry_id is required")
	}

	var view *vo.EntryView
	err := s.txManager.WithinReadOnlyTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		entry, repoErr := s.repo.GetByID(txCtx, sess, entryID)
		if repoErr != nil {
			return repoErr
		}
		if entry.IsDeleted() {
			return ErrEntryNotFound
		}
		view = vo.NewEntryView(entry)
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrEntryNotFound) || IsNotFound(err) {
			return nil, ErrEntryNotFound
		}
		s.log.WithContext(ctx).Errorf("get entry failed: entry_id=%s err=%v", entryID, err)
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return view, nil
}
