package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/alphascan/internal/config"
	"github.com/aristath/alphascan/internal/modules/risk"
	"github.com/aristath/alphascan/internal/scheduler"
)

// RegisterJobs builds the jobs and, when sched is non-nil, schedules those
// with a cron expression.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}

	var archiver scheduler.Archiver
	if container.Archives != nil {
		archiver = container.Archives
	}
	jobs.Scan = scheduler.NewScanJob(scheduler.ScanJobConfig{
		Candidates:      container.Candidates,
		LookbackDays:    cfg.LookbackDays,
		BenchmarkTicker: cfg.BenchmarkTicker,
		RegimeTicker:    cfg.RegimeTicker,
		Regime:          risk.DefaultRegimeConfig(),
		Timeout:         30 * time.Minute,
	}, container.History, container.Scanner, container.Engine, archiver, log)

	if container.ResultCache != nil {
		jobs.CachePurge = scheduler.NewCachePurgeJob(container.ResultCache, log)
	}
	if container.Archives != nil {
		jobs.ArchiveRotation = scheduler.NewArchiveRotationJob(container.Archives, cfg.ArchiveRetention, log)
	}

	if sched == nil {
		return jobs, nil
	}

	schedules := []scheduledJob{{cfg.ScanCron, jobs.Scan}}
	if jobs.CachePurge != nil {
		schedules = append(schedules, scheduledJob{cfg.CachePurgeCron, jobs.CachePurge})
	}
	if jobs.ArchiveRotation != nil {
		schedules = append(schedules, scheduledJob{cfg.ArchiveRotationCron, jobs.ArchiveRotation})
	}

	for _, s := range schedules {
		if s.cron == "" {
			continue
		}
		if err := sched.AddJob(s.cron, s.job); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", s.job.Name(), err)
		}
	}
	return jobs, nil
}

type scheduledJob struct {
	cron string
	job  scheduler.Job
}
