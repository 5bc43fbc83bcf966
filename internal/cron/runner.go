// internal/cron/runner.go
package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner schedules background ledger jobs. Specs carry a seconds field.
// A job still running when its next tick fires is skipped.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
}

func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		baseCtx: baseCtx,
	}
}

// Add registers job under name. An empty spec disables the job.
func (r *Runner) Add(name, spec string, job func(context.Context) error) (cron.EntryID, error) {
	if spec == "" {
		logrus.WithField("job", name).Info("Cron job disabled")
		return 0, nil
	}

	id, err := r.cron.AddFunc(spec, func() {
		if r.baseCtx.Err() != nil {
			return
		}
		started := time.Now()
		entry := logrus.WithField("job", name)
		if err := job(r.baseCtx); err != nil {
			entry.WithError(err).Error("Cron job failed")
			return
		}
		entry.WithField("duration", time.Since(started).String()).Debug("Cron job finished")
	})
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Cron job scheduled")
	return id, nil
}

func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

func (r *Runner) Start() {
	logrus.Info("Cron started")
	r.cron.Start()
}

// Stop waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logrus.Info("Cron stopped")
}
