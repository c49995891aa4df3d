package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vibarr/vibarr/errs"
)

func testScheduler(workers int, grace time.Duration) *Scheduler {
	return New(workers, grace, log.New(io.Discard))
}

func TestRegisterValidates(t *testing.T) {
	s := testScheduler(1, time.Second)
	task := func(ctx context.Context) error { return nil }

	require.NoError(t, s.Register("nightly", "0 3 * * *", "", task))

	assert.ErrorIs(t, s.Register("nightly", "", "", task), errs.ErrConflict)
	assert.Error(t, s.Register("bad-cron", "five past never", "", task))
	assert.ErrorIs(t, s.Register("bad-rate", "", "3/x", task), errs.ErrInvalid)
	assert.ErrorIs(t, s.Register("", "", "", task), errs.ErrInvalid)
	assert.ErrorIs(t, s.Register("no-task", "", "", nil), errs.ErrInvalid)
}

func TestParseRateAnnotations(t *testing.T) {
	cases := []struct {
		tag   string
		limit rate.Limit
	}{
		{"1/s", rate.Every(time.Second)},
		{"10/m", rate.Every(6 * time.Second)},
		{"60/h", rate.Every(time.Minute)},
	}
	for _, tc := range cases {
		limiter, err := parseRate(tc.tag)
		require.NoError(t, err, tc.tag)
		assert.Equal(t, tc.limit, limiter.Limit(), tc.tag)
	}

	limiter, err := parseRate("")
	require.NoError(t, err)
	assert.Nil(t, limiter)

	for _, tag := range []string{"nope", "0/s", "-1/m", "5/fortnight", "x/m"} {
		_, err := parseRate(tag)
		assert.ErrorIs(t, err, errs.ErrInvalid, tag)
	}
}

func TestEnqueueRunsRegisteredJob(t *testing.T) {
	s := testScheduler(2, time.Second)
	ran := make(chan struct{})
	require.NoError(t, s.Register("ping", "", "", func(ctx context.Context) error {
		close(ran)
		return nil
	}))
	s.Start()
	defer s.Shutdown()

	require.NoError(t, s.Enqueue("ping"))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	assert.ErrorIs(t, s.Enqueue("ghost"), errs.ErrNotFound)
}

func TestSubmitRunsAdHocTask(t *testing.T) {
	s := testScheduler(1, time.Second)
	s.Start()
	defer s.Shutdown()

	ran := make(chan struct{})
	s.Submit("one-off", func(ctx context.Context) error {
		close(ran)
		return nil
	})
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("submitted task did not run")
	}
}

func TestJobNeverOverlapsItself(t *testing.T) {
	s := testScheduler(2, time.Second)
	var runs atomic.Int32
	started := make(chan struct{}, 1)
	block := make(chan struct{})
	require.NoError(t, s.Register("slow", "", "", func(ctx context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-block
		return nil
	}))
	s.Start()

	require.NoError(t, s.Enqueue("slow"))
	<-started

	// Second worker is free, but the job is still in flight.
	require.NoError(t, s.Enqueue("slow"))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(block)
	s.Shutdown()
	assert.Equal(t, int32(1), runs.Load())
}

func TestDispatcherEnqueuesDueJobsOnce(t *testing.T) {
	s := testScheduler(1, time.Second)
	require.NoError(t, s.Register("minutely", "* * * * *", "", func(ctx context.Context) error { return nil }))

	s.mu.Lock()
	s.jobs["minutely"].nextRun = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	s.enqueueDue(time.Now())
	select {
	case got := <-s.tasks:
		assert.Equal(t, "minutely", got.name)
		assert.Equal(t, "schedule", got.trigger)
	default:
		t.Fatal("due job was not enqueued")
	}

	// nextRun advanced past now, so the same tick cannot double-fire.
	s.enqueueDue(time.Now())
	select {
	case <-s.tasks:
		t.Fatal("job enqueued twice for one due time")
	default:
	}

	status := s.Jobs()[0]
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))
}

func TestJobStatusTracksOutcome(t *testing.T) {
	s := testScheduler(1, time.Second)
	require.NoError(t, s.Register("flaky", "", "", func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))
	s.Start()

	require.NoError(t, s.Enqueue("flaky"))
	deadline := time.Now().Add(2 * time.Second)
	for {
		status := s.Jobs()[0]
		if status.LastRun != nil {
			assert.Contains(t, status.LastError, "deadline")
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never recorded a run")
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.Shutdown()
}

func TestShutdownGivesGraceThenCancels(t *testing.T) {
	s := testScheduler(1, 50*time.Millisecond)
	started := make(chan struct{})
	canceled := make(chan struct{})
	require.NoError(t, s.Register("hang", "", "", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	}))
	s.Start()
	require.NoError(t, s.Enqueue("hang"))
	<-started

	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not canceled after the grace period")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return")
	}
}

func TestQueuedTasksDroppedOnShutdown(t *testing.T) {
	s := testScheduler(1, 50*time.Millisecond)
	started := make(chan struct{})
	var extra atomic.Int32
	require.NoError(t, s.Register("busy", "", "", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}))
	s.Start()
	require.NoError(t, s.Enqueue("busy"))
	<-started

	// These sit in the queue behind the only worker.
	s.Submit("later-1", func(ctx context.Context) error { extra.Add(1); return nil })
	s.Submit("later-2", func(ctx context.Context) error { extra.Add(1); return nil })

	s.Shutdown()
	assert.Equal(t, int32(0), extra.Load(), "queued tasks must not run during shutdown")
}
