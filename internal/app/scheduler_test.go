package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/models"
	"github.com/bobmcallan/navsync/internal/services/navsync"
)

func TestNewScheduler_NextRunInIST(t *testing.T) {
	cfg := common.ScheduleConfig{Enabled: true, Cron: "0 18 * * 1-5", Timezone: "Asia/Kolkata"}

	sched, err := newScheduler(cfg, common.NewSilentLogger(), func() {})
	require.NoError(t, err)

	entries := sched.Entries()
	require.Len(t, entries, 1)

	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// Friday 2025-10-31 19:00 IST: next run is Monday 18:00 IST
	from := time.Date(2025, 10, 31, 19, 0, 0, 0, ist)
	next := entries[0].Schedule.Next(from)
	assert.Equal(t, time.Date(2025, 11, 3, 18, 0, 0, 0, ist), next.In(ist))
	assert.Equal(t, 12, next.UTC().Hour())
	assert.Equal(t, 30, next.UTC().Minute())

	// Wednesday 10:00 IST: same day
	from = time.Date(2025, 10, 29, 10, 0, 0, 0, ist)
	assert.Equal(t, time.Date(2025, 10, 29, 18, 0, 0, 0, ist), entries[0].Schedule.Next(from).In(ist))
}

func TestNewScheduler_InvalidSettings(t *testing.T) {
	_, err := newScheduler(common.ScheduleConfig{Cron: "0 18 * * 1-5", Timezone: "Mars/Olympus"}, common.NewSilentLogger(), func() {})
	assert.Error(t, err)

	_, err = newScheduler(common.ScheduleConfig{Cron: "every day", Timezone: "UTC"}, common.NewSilentLogger(), func() {})
	assert.Error(t, err)
}

func TestRunScheduledUpdate_SwallowsOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"lock held", navsync.ErrRunInProgress},
		{"fetch failure", &navsync.StageError{Stage: navsync.StageFetch, Err: errors.New("dial tcp: timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNavService{err: tt.err}
			assert.NotPanics(t, func() {
				runScheduledUpdate(context.Background(), svc, common.NewSilentLogger())
			})
			assert.Equal(t, []string{models.TriggerScheduled}, svc.calls)
		})
	}
}

func TestScheduler_RecoversPanickingJob(t *testing.T) {
	svc := &mockNavService{panicOn: true}
	done := make(chan struct{})

	sched, err := newScheduler(common.ScheduleConfig{Cron: "@every 1s", Timezone: "UTC"}, common.NewSilentLogger(), func() {
		defer close(done)
		runScheduledUpdate(context.Background(), svc, common.NewSilentLogger())
	})
	require.NoError(t, err)

	sched.Start()
	defer sched.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
	assert.Equal(t, []string{models.TriggerScheduled}, svc.calls)
}

func TestStartNavScheduler_Disabled(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Schedule.Enabled = false
	a := &App{Config: cfg, Logger: common.NewSilentLogger(), NavService: &mockNavService{}}

	require.NoError(t, a.StartNavScheduler())
	assert.Nil(t, a.scheduler)
}

func TestStartNavScheduler_StartsAndStops(t *testing.T) {
	cfg := common.NewDefaultConfig()
	a := &App{Config: cfg, Logger: common.NewSilentLogger(), NavService: &mockNavService{}}

	require.NoError(t, a.StartNavScheduler())
	require.NotNil(t, a.scheduler)
	assert.Len(t, a.scheduler.Entries(), 1)

	a.Close()
	assert.Nil(t, a.scheduler)
}

// blockingNavService holds Run open until its context is cancelled.
type blockingNavService struct {
	mockNavService
	started chan struct{}
	once    sync.Once
}

func (b *blockingNavService) Run(ctx context.Context, trigger string) (*models.RunResult, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return &models.RunResult{Trigger: trigger}, ctx.Err()
}

func TestClose_CancelsInFlightScheduledRun(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Schedule.Cron = "@every 1s"
	cfg.Schedule.Timezone = "UTC"
	svc := &blockingNavService{started: make(chan struct{})}
	a := &App{Config: cfg, Logger: common.NewSilentLogger(), NavService: svc}

	require.NoError(t, a.StartNavScheduler())

	select {
	case <-svc.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	closed := make(chan struct{})
	go func() {
		a.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the in-flight scheduled run")
	}
	assert.Nil(t, a.scheduler)
}
