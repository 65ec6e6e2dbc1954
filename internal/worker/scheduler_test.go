package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/app/apptest"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/db/dbtest"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/service/admin"
	"github.com/oggyb/matchbot/internal/service/notify"
	"github.com/oggyb/matchbot/internal/worker"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	s := worker.NewScheduler(logger.Discard())
	s.Add(worker.Job{Name: "tick", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	s.Add(worker.Job{Name: "off", Interval: 0, Run: func(context.Context) error {
		t.Error("disabled job ran")
		return nil
	}})
	require.Len(t, s.Jobs(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestRunOnce_ContainsFailures(t *testing.T) {
	assert.NotPanics(t, func() {
		worker.RunOnce(context.Background(), logger.Discard(), worker.Job{Name: "boom", Run: func(context.Context) error {
			panic("boom")
		}})
		worker.RunOnce(context.Background(), logger.Discard(), worker.Job{Name: "err", Run: func(context.Context) error {
			return errors.New("failed")
		}})
	})
}

// TestDefaultJobs runs each configured job once against a real database.
func TestDefaultJobs(t *testing.T) {
	appCtx, rec := apptest.New(t)
	appCtx.Config.Jobs.SummaryInterval = time.Hour
	appCtx.Config.Jobs.ReminderInterval = time.Hour
	appCtx.Config.Jobs.CleanupInterval = time.Hour

	dbtest.BareUser(t, appCtx.DB, 1, dbtest.WithCreated(time.Now().Add(-48*time.Hour)))
	dbtest.BareUser(t, appCtx.DB, 2, dbtest.WithCreated(time.Now().Add(-60*24*time.Hour)))
	dbtest.CompleteUser(t, appCtx.DB, 3, db.GenderMale, db.GenderFemale, "Kyiv")

	notifier := notify.NewService(appCtx)
	jobs := worker.DefaultJobs(appCtx, notifier, admin.NewService(appCtx, notifier))
	require.Len(t, jobs, 3)

	for _, j := range jobs {
		require.NoError(t, j.Run(context.Background()), j.Name)
	}

	assert.NotEmpty(t, rec.To(1), "reminder for the unfinished profile")
	var n int64
	require.NoError(t, appCtx.DB.Model(&db.User{}).Where("id = ?", 2).Count(&n).Error)
	assert.Zero(t, n, "abandoned profile cleaned up")
}
