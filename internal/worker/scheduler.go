// Package worker runs the periodic background jobs: daily summaries,
// profile reminders and database cleanup.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oggyb/matchbot/internal/app"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/notify"
)

// Job is one unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each job on its own ticker. Runs of the same job never
// overlap; a slow run delays the next tick.
type Scheduler struct {
	log  *slog.Logger
	jobs []Job
	wg   sync.WaitGroup
}

func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers job. Jobs with a non-positive interval are disabled.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.log.Info("job disabled", "job", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// Jobs returns the enabled jobs.
func (s *Scheduler) Jobs() []Job { return s.jobs }

// Start launches every job and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Wait blocks until every job loop exited after ctx was cancelled.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log := s.log.With("job", job.Name)
	log.Info("job scheduled", "interval", job.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunOnce(ctx, log, job)
		}
	}
}

// RunOnce executes job and logs its outcome; panics are contained.
func RunOnce(ctx context.Context, log *slog.Logger, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "job", job.Name, "panic", r)
		}
	}()
	if err := job.Run(ctx); err != nil {
		log.Error("job failed", "job", job.Name, "err", err, "took", time.Since(start))
		return
	}
	log.Debug("job finished", "job", job.Name, "took", time.Since(start))
}

// DefaultJobs builds the bot's jobs from config intervals.
func DefaultJobs(appCtx *app.AppContext, notifier *notify.Service, adm *admin.Service) []Job {
	cfg := appCtx.Config.Jobs
	return []Job{
		{
			Name:     "daily_summary",
			Interval: cfg.SummaryInterval,
			Run: func(ctx context.Context) error {
				t, err := notifier.DailySummaries(ctx, time.Now())
				appCtx.Logger.Info("daily summaries sent", "success", t.Success, "failure", t.Failure)
				return err
			},
		},
		{
			Name:     "profile_reminder",
			Interval: cfg.ReminderInterval,
			Run: func(ctx context.Context) error {
				t, err := notifier.ProfileReminders(ctx, time.Now())
				appCtx.Logger.Info("profile reminders sent", "success", t.Success, "failure", t.Failure)
				return err
			},
		},
		{
			Name:     "cleanup",
			Interval: cfg.CleanupInterval,
			Run: func(ctx context.Context) error {
				_, err := adm.Cleanup(ctx)
				return err
			},
		},
	}
}
