package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"syncqueue-client/internal/config"
	"syncqueue-client/internal/logger"
)

// refreshTimeout bounds one scheduled reload.
const refreshTimeout = 30 * time.Second

// Scheduler reloads the view on a cron schedule. It only reads; writes are
// never retried behind the user's back.
type Scheduler struct {
	cfg     config.SchedulerConfig
	manager *Manager
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewScheduler(cfg config.SchedulerConfig, manager *Manager) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		manager: manager,
		cron:    cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		logger.Log.Info("Scheduler is disabled")
		return nil
	}

	logger.Log.Info("Starting scheduler", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.triggerRefresh()
	})
	if err != nil {
		return fmt.Errorf("invalid scheduler interval %q: %w", s.cfg.Interval, err)
	}

	s.entryID = id
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.Log.Info("Stopped scheduler")
}

func (s *Scheduler) triggerRefresh() {
	if s.manager.Loading() {
		logger.Log.Info("Load already running, skipping scheduled refresh")
		return
	}

	logger.Log.Debug("Triggering scheduled refresh")
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := s.manager.Load(ctx); err != nil {
		logger.Log.Warn("Scheduled refresh failed", zap.Error(err))
	}
}
