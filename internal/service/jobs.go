package service

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"

	"tg-exchange/internal/crash"
	"tg-exchange/internal/locks"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// scheduler runs the periodic jobs, one goroutine per job.
type scheduler struct {
	wg     conc.WaitGroup
	cancel context.CancelFunc
}

type job struct {
	name  string
	every time.Duration
	run   func(ctx context.Context)
}

func (s *Service) jobList() []job {
	jc := s.cfg.Jobs
	jobs := []job{
		{"admin-refresh", jc.AdminRefresh, func(ctx context.Context) { s.RefreshAdmins(ctx) }},
		{"recorded-reset", jc.RecordedReset, func(ctx context.Context) { s.ResetRecorded() }},
		{"monthly-reset", time.Hour, func(ctx context.Context) { s.MonthlyReset() }},
		{"ignore-list", jc.IgnoreList, func(ctx context.Context) {
			if err := s.ShareIgnoreList(ctx); err != nil {
				logger.Warningf("Share ignore list: %v", err)
			}
		}},
	}
	if jc.Backup {
		jobs = append(jobs, job{"backup", jc.BackupInterval, func(ctx context.Context) {
			if err := s.BackupTables(ctx); err != nil {
				logger.Warningf("Backup tables: %v", err)
			}
		}})
	}
	return jobs
}

// StartJobs starts every periodic job. Jobs with a zero interval are off.
func (s *Service) StartJobs(ctx context.Context) {
	if s.jobs != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.jobs = &scheduler{cancel: cancel}

	for _, j := range s.jobList() {
		if j.every <= 0 {
			logger.Infof("Job %s disabled", j.name)
			continue
		}
		s.jobs.wg.Go(func() { s.loop(ctx, j) })
	}
	s.ShareBackupStatus(ctx, "awake")
}

// StopJobs cancels the jobs and waits for running ones to return.
func (s *Service) StopJobs() {
	if s.jobs == nil {
		return
	}
	s.jobs.cancel()
	s.jobs.wg.Wait()
	s.jobs = nil
}

func (s *Service) loop(ctx context.Context, j job) {
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	logger.Debugf("Job %s every %s", j.name, j.every)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) {
	defer crash.Recover("job "+j.name, nil)
	start := time.Now()
	j.run(ctx)
	logger.Debugf("Job %s done in %s", j.name, time.Since(start))
}

// ResetRecorded starts a new delete-only rate window.
func (s *Service) ResetRecorded() {
	s.locks.With(locks.Message, s.store.ResetRecorded)
}

// MonthlyReset clears the monthly lists once on the configured day.
func (s *Service) MonthlyReset() {
	day := s.cfg.Jobs.MonthlyResetDay
	if day <= 0 {
		return
	}
	now := s.now()
	if now.Day() != day {
		return
	}
	var (
		ran bool
		err error
	)
	s.locks.With(locks.Message, func() { ran, err = s.store.ResetMonthly(now.Format("2006-01")) })
	if err != nil {
		logger.Errorf("Monthly reset: %v", err)
		return
	}
	if !ran {
		return
	}
	logger.Infof("Monthly reset done for %s", now.Format("2006-01"))

	text := s.projectText().field("action", code(models.T("action_reset")))
	s.debug("monthly-reset", text.String())
}
