package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/models"
	"github.com/bobmcallan/navsync/internal/services/navsync"
)

// scheduledRunTimeout bounds one scheduled pipeline run.
const scheduledRunTimeout = 15 * time.Minute

// cronLogger adapts common.Logger to cron.Logger.
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("Scheduler: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("Scheduler: " + msg)
}

// newScheduler builds a cron scheduler for cfg that runs job. Panics are
// recovered and a run still in progress causes the next tick to be skipped.
func newScheduler(cfg common.ScheduleConfig, logger *common.Logger, job func()) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(cfg.Cron, job); err != nil {
		return nil, fmt.Errorf("invalid schedule cron %q: %w", cfg.Cron, err)
	}
	return c, nil
}

// StartNavScheduler starts the daily NAV update. It is a no-op when the
// schedule is disabled.
func (a *App) StartNavScheduler() error {
	if !a.Config.Schedule.Enabled {
		a.Logger.Info().Msg("NAV scheduler: disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sched, err := newScheduler(a.Config.Schedule, a.Logger, func() {
		runCtx, runCancel := context.WithTimeout(ctx, scheduledRunTimeout)
		defer runCancel()
		runScheduledUpdate(runCtx, a.NavService, a.Logger)
	})
	if err != nil {
		cancel()
		return err
	}

	a.scheduler = sched
	a.schedulerCancel = cancel
	sched.Start()

	a.Logger.Info().
		Str("cron", a.Config.Schedule.Cron).
		Str("timezone", a.Config.Schedule.Timezone).
		Time("next_run", sched.Entries()[0].Next).
		Msg("NAV scheduler: started")
	return nil
}

// runScheduledUpdate runs the pipeline for the scheduled trigger. Every
// outcome is logged and swallowed; there is no caller to report to.
func runScheduledUpdate(ctx context.Context, svc interfaces.NavService, logger *common.Logger) {
	result, err := svc.Run(ctx, models.TriggerScheduled)
	switch {
	case errors.Is(err, navsync.ErrRunInProgress):
		logger.Info().Msg("Scheduled NAV update: skipped, another run in progress")
	case err != nil:
		logger.Error().Err(err).Str("stage", navsync.StageOf(err)).Msg("Scheduled NAV update: failed")
	default:
		logger.Info().
			Str("run_id", result.RunID).
			Int("updated", result.UpdatedCount).
			Int("schemes", result.TotalSchemesFetched).
			Msg("Scheduled NAV update: complete")
	}
}
