// Package janitor 周期性回收过期的上传预约。
// 预约在 TTL 内未收到 OBJECT_FINALIZE 确认即视为放弃，软删除释放唯一键。
package janitor

import (
	"context"
	"errors"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Config 描述清理任务的调度参数。
type Config struct {
	ReservationTTL time.Duration
	SweepInterval  time.Duration
	BatchLimit     int32
}

// Sweeper 定期扫描过期预约并软删除。
type Sweeper struct {
	repo      services.EntryRepo
	lifecycle *services.LifecycleService
	txManager txmanager.Manager
	cfg       Config
	log       *log.Helper
	now       func() time.Time
}

// NewSweeper 构造 Sweeper。
func NewSweeper(repo services.EntryRepo, lifecycle *services.LifecycleService, txManager txmanager.Manager, cfg Config, logger log.Logger) (*Sweeper, error) {
	switch {
	case repo == nil:
		return nil, errors.New("janitor: repository is required")
	case lifecycle == nil:
		return nil, errors.New("janitor: lifecycle service is required")
	case txManager == nil:
		return nil, errors.New("janitor: tx manager is required")
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	return &Sweeper{
		repo:      repo,
		lifecycle: lifecycle,
		txManager: txManager,
		cfg:       cfg,
		now:       time.Now,
		log:       log.NewHelper(logger),
	}, nil
}

// Run 启动清扫循环，ctx 取消时退出。
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.log.WithContext(ctx).Infof("janitor started: ttl=%s interval=%s batch=%d", s.cfg.ReservationTTL, s.cfg.SweepInterval, s.cfg.BatchLimit)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithContext(ctx).Errorf("janitor sweep failed: %v", err)
			}
		}
	}
}

// SweepOnce 执行一轮清扫，返回首个阻断性错误。
// 单行删除失败不终止本轮，其余过期行继续处理。
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.cfg.ReservationTTL)

	var expired []*po.Entry
	err := s.txManager.WithinReadOnlyTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		rows, listErr := s.repo.ListExpiredPending(txCtx, sess, cutoff, s.cfg.BatchLimit)
		if listErr != nil {
			return listErr
		}
		expired = rows
		return nil
	})
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	reclaimed := 0
	for _, entry := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reclaim(ctx, entry.EntryID, cutoff); err != nil {
			s.log.WithContext(ctx).Warnf("janitor reclaim failed: entry_id=%s err=%v", entry.EntryID, err)
			continue
		}
		reclaimed++
	}

	s.log.WithContext(ctx).Infof("janitor sweep done: expired=%d reclaimed=%d cutoff=%s", len(expired), reclaimed, cutoff.Format(time.RFC3339))
	return nil
}

// reclaim 软删除单个过期预约。并发 finalize 或删除导致的冲突视为已处理。
func (s *Sweeper) reclaim(ctx context.Context, entryID uuid.UUID, cutoff time.Time) error {
	_, err := s.lifecycle.ReclaimExpiredReservation(ctx, entryID, cutoff)
	if err == nil {
		return nil
	}
	if services.IsNotFound(err) || services.IsConflict(err) {
		return nil
	}
	return err
}
