package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"showshelf/internal/timeutil"
)

// SchedulerConfig holds the schedule of background jobs.
type SchedulerConfig struct {
	ReportTime      string         // Format: "HH:MM"
	RefreshInterval time.Duration  // how often stale shows are looked for
	RefreshMaxAge   time.Duration  // shows older than this are refreshed
	Location        *time.Location // zone ReportTime is read in; UTC when nil
}

// Scheduler runs the periodic refresh, the weekly backup, and the daily report
type Scheduler struct {
	shows        *ShowService
	backupSvc    *BackupService
	reportSender ReportSender
	cfg          SchedulerConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new Scheduler. reportSender may be nil.
func NewScheduler(shows *ShowService, backupSvc *BackupService, reportSender ReportSender, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		shows:        shows,
		backupSvc:    backupSvc,
		reportSender: reportSender,
		cfg:          cfg,
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.spawn(ctx, s.runRefreshScheduler)
	s.spawn(ctx, s.runWeeklyBackupScheduler)
	if s.reportSender != nil {
		s.spawn(ctx, s.runDailyReportScheduler)
	}
	zap.S().Infow("scheduler started",
		"refresh_interval", s.cfg.RefreshInterval,
		"refresh_max_age", s.cfg.RefreshMaxAge,
		"report_time", s.cfg.ReportTime,
	)
}

// Stop stops all scheduled tasks and waits for running jobs to return
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) spawn(ctx context.Context, fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

func (s *Scheduler) runRefreshScheduler(ctx context.Context) {
	if s.cfg.RefreshInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		s.RefreshNow(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// RefreshNow runs one stale-refresh pass.
func (s *Scheduler) RefreshNow(ctx context.Context) {
	n, err := s.shows.RefreshStale(ctx, s.cfg.RefreshMaxAge)
	if err != nil {
		zap.S().Warnw("stale refresh interrupted", "refreshed", n, "err", err)
		return
	}
	if n > 0 {
		zap.S().Infow("stale shows refreshed", "count", n)
	}
}

func (s *Scheduler) runDailyReportScheduler(ctx context.Context) {
	for {
		nextRun := s.NextReport()
		zap.S().Debugw("next upcoming report scheduled", "at", nextRun.Format(time.DateTime), "zone", nextRun.Location().String())

		select {
		case <-time.After(nextRun.Sub(timeutil.Now())):
			if err := s.reportSender.SendUpcomingReport(ctx); err != nil {
				zap.S().Errorw("failed to send upcoming report", "err", err)
			} else {
				zap.S().Infow("upcoming report sent")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runWeeklyBackupScheduler(ctx context.Context) {
	for {
		nextRun := NextBackupTime(timeutil.Now())
		zap.S().Debugw("next backup scheduled", "at", nextRun.Format(time.DateTime))

		select {
		case <-time.After(nextRun.Sub(timeutil.Now())):
			backupPath, err := s.backupSvc.Backup(ctx)
			if err != nil {
				zap.S().Errorw("failed to create backup", "err", err)
			} else {
				zap.S().Infow("backup created", "path", backupPath)
			}
		case <-ctx.Done():
			return
		}
	}
}

// NextReport returns when the daily report is next due, in the report zone.
func (s *Scheduler) NextReport() time.Time {
	loc := s.cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return NextReportTime(timeutil.Now().In(loc), s.cfg.ReportTime)
}

// NextReportTime returns the next occurrence of reportTime ("HH:MM",
// default 08:00) strictly after now.
func NextReportTime(now time.Time, reportTime string) time.Time {
	hour, minute := 8, 0
	if reportTime != "" {
		var h, m int
		if _, err := fmt.Sscanf(reportTime, "%d:%d", &h, &m); err == nil && h >= 0 && h < 24 && m >= 0 && m < 60 {
			hour, minute = h, m
		}
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NextBackupTime returns the next Sunday 03:00 strictly after now.
func NextBackupTime(now time.Time) time.Time {
	daysUntilSunday := (7 - int(now.Weekday())) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+daysUntilSunday, 3, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
