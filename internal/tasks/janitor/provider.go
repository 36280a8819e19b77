package janitor

import (
	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// ProvideSweeper 装配过期预约清理任务。
func ProvideSweeper(
	repo *repositories.EntryRepository,
	lifecycle *services.LifecycleService,
	tx txmanager.Manager,
	cfg configloader.JanitorConfig,
	logger log.Logger,
) *Sweeper {
	if repo == nil || lifecycle == nil || logger == nil {
		return nil
	}

	sweeper, err := NewSweeper(repo, lifecycle, tx, Config{
		ReservationTTL: cfg.ReservationTTL(),
		SweepInterval:  cfg.SweepInterval(),
		BatchLimit:     cfg.BatchLimit,
	}, logger)
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init janitor sweeper failed", "error", err)
		return nil
	}
	return sweeper
}
