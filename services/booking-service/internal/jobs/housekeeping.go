// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/62saybyetopain/new-reservation-system/services/booking-service/internal/calendar"
	"github.com/robfig/cron/v3"
)

type OverridePruner interface {
	PruneOverrides(ctx context.Context, before time.Time) (int64, error)
}

type OutboxPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	// Spec is a standard five-field cron expression or a descriptor such as "@daily".
	Spec string
	// OverrideRetention keeps past overrides this many days before pruning them.
	OverrideRetention int
	// OutboxRetention keeps published outbox rows this long.
	OutboxRetention time.Duration
	Timeout         time.Duration
	Location        *time.Location
}

type Housekeeper struct {
	cron   *cron.Cron
	prune  OverridePruner
	purge  OutboxPurger
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

func NewHousekeeper(prune OverridePruner, purge OutboxPurger, logger *slog.Logger, cfg Config) *Housekeeper {
	if cfg.Spec == "" {
		cfg.Spec = "15 3 * * *"
	}
	if cfg.OverrideRetention < 0 {
		cfg.OverrideRetention = 0
	}
	if cfg.OutboxRetention <= 0 {
		cfg.OutboxRetention = 7 * 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Housekeeper{
		cron:   cron.New(cron.WithLocation(cfg.Location)),
		prune:  prune,
		purge:  purge,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start schedules the sweep and blocks until ctx ends, then waits for a running sweep.
func (h *Housekeeper) Start(ctx context.Context) error {
	if _, err := h.cron.AddFunc(h.cfg.Spec, func() { h.RunOnce(ctx) }); err != nil {
		return err
	}
	h.cron.Start()
	h.logger.Info("housekeeping scheduled", "spec", h.cfg.Spec)

	<-ctx.Done()
	<-h.cron.Stop().Done()
	return nil
}

// RunOnce prunes stale overrides and purges published outbox rows.
func (h *Housekeeper) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	now := h.now().In(h.cfg.Location)
	if h.prune != nil {
		before := calendar.AddDays(calendar.Today(now), -h.cfg.OverrideRetention)
		n, err := h.prune.PruneOverrides(ctx, before)
		if err != nil {
			h.logger.Error("override prune failed", "err", err)
		} else if n > 0 {
			h.logger.Info("pruned past overrides", "count", n, "before", calendar.DateKey(before))
		}
	}
	if h.purge != nil {
		n, err := h.purge.Purge(ctx, now.Add(-h.cfg.OutboxRetention))
		if err != nil {
			h.logger.Error("outbox purge failed", "err", err)
		} else if n > 0 {
			h.logger.Info("purged published outbox events", "count", n)
		}
	}
}
