package cron

import (
	"Inkwell/internal/api/config"
	"Inkwell/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

const defaultReconcileSpec = "0 */10 * * * *"

type Manager struct {
	engine       *cron.Cron
	cfg          config.JobsConfig
	reconcileJob *job.RollupReconcileJob
}

func NewCronManager(cfg config.JobsConfig, reconcileJob *job.RollupReconcileJob) *Manager {
	return &Manager{
		engine:       cron.New(cron.WithSeconds()),
		cfg:          cfg,
		reconcileJob: reconcileJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if !s.cfg.ReconcileEnabled {
		log.Info("rollup reconcile job disabled")
		return nil
	}
	spec := s.cfg.ReconcileSpec
	if spec == "" {
		spec = defaultReconcileSpec
	}
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.reconcileJob)
	if _, err := s.engine.AddJob(spec, wrapped); err != nil {
		return err
	}
	return nil
}

// Entries 已注册的任务数
func (s *Manager) Entries() int {
	return len(s.engine.Entries())
}

func (s *Manager) Start() {
	log.Info("Cron 定时任务引擎启动")
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron 定时任务引擎停止")
	<-s.engine.Stop().Done()
}

// InitCron 注册并启动，没有启用的任务时不启动引擎
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	if mgr.Entries() == 0 {
		log.Info("Cron Jobs skipped, nothing enabled")
		return nil
	}
	log.Info("Cron Jobs starting...", "entries", mgr.Entries())
	mgr.Start()
	return nil
}
