// Package scheduler runs the background jobs: a cron-style job table, a
// fixed worker pool, and a dispatcher that ticks every thirty seconds and
// enqueues whatever is due. Jobs never overlap themselves; a run that
// outlives its schedule is skipped, not queued behind itself. Tasks carrying
// a rate annotation wait on their limiter in the worker, immediately before
// the body runs, so a saturated pool cannot bank tokens.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/metrics"
)

const (
	dispatchInterval = 30 * time.Second

	// softTimeLimit only warns; hardTimeLimit cancels the task context.
	softTimeLimit = 55 * time.Minute
	hardTimeLimit = time.Hour

	queueDepth   = 32
	defaultGrace = 5 * time.Second
)

// Task is one unit of background work. The context carries the hard time
// limit and is canceled on shutdown after the grace period.
type Task func(ctx context.Context) error

type job struct {
	name     string
	schedule cron.Schedule
	spec     string
	limiter  *rate.Limiter
	run      Task
	running  atomic.Bool

	// Guarded by Scheduler.mu.
	nextRun time.Time
	lastRun time.Time
	lastErr string
}

type task struct {
	name    string
	job     *job // nil for ad-hoc submissions
	limiter *rate.Limiter
	run     Task
	trigger string
}

// JobStatus is the read-only view served by the stats API.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule,omitempty"`
	Running   bool       `json:"running"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type Scheduler struct {
	logger  *log.Logger
	workers int
	grace   time.Duration

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	stopped bool

	tasks chan *task
	wake  chan struct{}

	dispatchCtx    context.Context
	dispatchCancel context.CancelFunc
	runCtx         context.Context
	runCancel      context.CancelFunc

	workerWG sync.WaitGroup
	runWG    sync.WaitGroup
}

// New creates a scheduler with the given pool size. Zero values fall back to
// four workers and a five second shutdown grace.
func New(workers int, grace time.Duration, logger *log.Logger) *Scheduler {
	if workers <= 0 {
		workers = 4
	}
	if grace <= 0 {
		grace = defaultGrace
	}
	dispatchCtx, dispatchCancel := context.WithCancel(context.Background())
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:         logger.With("component", "scheduler"),
		workers:        workers,
		grace:          grace,
		jobs:           make(map[string]*job),
		tasks:          make(chan *task, queueDepth),
		wake:           make(chan struct{}, 1),
		dispatchCtx:    dispatchCtx,
		dispatchCancel: dispatchCancel,
		runCtx:         runCtx,
		runCancel:      runCancel,
	}
}

// Register adds a named job. The schedule is a standard five-field cron
// expression, parsed once here; an empty schedule registers a job that only
// runs via Enqueue. rateTag is "" or "N/s", "N/m", "N/h".
func (s *Scheduler) Register(name, schedule, rateTag string, fn Task) error {
	if name == "" || fn == nil {
		return fmt.Errorf("job needs a name and a task: %w", errs.ErrInvalid)
	}

	var sched cron.Schedule
	if schedule != "" {
		parsed, err := cron.ParseStandard(schedule)
		if err != nil {
			return fmt.Errorf("job %s: parse schedule %q: %w", name, schedule, err)
		}
		sched = parsed
	}
	limiter, err := parseRate(rateTag)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered: %w", name, errs.ErrConflict)
	}
	j := &job{name: name, schedule: sched, spec: schedule, limiter: limiter, run: fn}
	if sched != nil {
		j.nextRun = sched.Next(time.Now())
	}
	s.jobs[name] = j
	s.order = append(s.order, name)
	return nil
}

// parseRate turns an "N/unit" annotation into an evenly spaced limiter, so
// no more than N runs start per unit no matter how many workers are free.
func parseRate(tag string) (*rate.Limiter, error) {
	if tag == "" {
		return nil, nil
	}
	count, unit, ok := strings.Cut(tag, "/")
	if !ok {
		return nil, fmt.Errorf("rate %q: %w", tag, errs.ErrInvalid)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("rate %q: %w", tag, errs.ErrInvalid)
	}
	var period time.Duration
	switch unit {
	case "s":
		period = time.Second
	case "m":
		period = time.Minute
	case "h":
		period = time.Hour
	default:
		return nil, fmt.Errorf("rate unit %q: %w", unit, errs.ErrInvalid)
	}
	return rate.NewLimiter(rate.Every(period/time.Duration(n)), 1), nil
}

// Start launches the workers and the dispatcher.
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.workerWG.Add(1)
		go s.worker()
	}
	s.workerWG.Add(1)
	go s.dispatch()
	s.logger.Info("scheduler started", "workers", s.workers, "jobs", len(s.order))
}

func (s *Scheduler) dispatch() {
	defer s.workerWG.Done()
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.dispatchCtx.Done():
			return
		case now := <-ticker.C:
			s.enqueueDue(now)
		case <-s.wake:
			s.enqueueDue(time.Now())
		}
	}
}

// Wake nudges the dispatcher ahead of its next tick. Settings writes use it
// so schedule evaluation does not lag a reconfiguration by half a minute.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) enqueueDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		j := s.jobs[name]
		if j.schedule == nil || now.Before(j.nextRun) {
			continue
		}
		j.nextRun = j.schedule.Next(now)
		s.push(&task{name: j.name, job: j, limiter: j.limiter, run: j.run, trigger: "schedule"})
	}
}

// push never blocks the dispatcher. The queue holds more tasks than the job
// table can produce in one tick, so a full queue means stuck workers and the
// run is better dropped than queued behind them.
func (s *Scheduler) push(t *task) bool {
	select {
	case s.tasks <- t:
		metrics.QueueDepth.Set(float64(len(s.tasks)))
		return true
	default:
		s.logger.Warn("task queue full, dropping run", "task", t.name)
		metrics.RecordJobRun(t.name, "dropped", 0)
		return false
	}
}

// Enqueue triggers a registered job outside its schedule. Skip-if-running
// still applies when the job is already in flight.
func (s *Scheduler) Enqueue(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q: %w", name, errs.ErrNotFound)
	}
	if !s.push(&task{name: j.name, job: j, limiter: j.limiter, run: j.run, trigger: "manual"}) {
		return fmt.Errorf("job %q: queue full: %w", name, errs.ErrUnavailable)
	}
	return nil
}

// Submit runs an ad-hoc task on the pool. Action endpoints use this to get
// work off the request goroutine.
func (s *Scheduler) Submit(name string, fn Task) error {
	if !s.push(&task{name: name, run: fn, trigger: "submit"}) {
		return fmt.Errorf("task %q: queue full: %w", name, errs.ErrUnavailable)
	}
	return nil
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()
	for {
		select {
		case <-s.dispatchCtx.Done():
			return
		case t := <-s.tasks:
			metrics.QueueDepth.Set(float64(len(s.tasks)))
			s.execute(t)
		}
	}
}

// beginRun registers an in-flight task unless shutdown already started.
func (s *Scheduler) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.runWG.Add(1)
	return true
}

func (s *Scheduler) execute(t *task) {
	if t.job != nil {
		if !t.job.running.CompareAndSwap(false, true) {
			s.logger.Debug("job still running, skipping", "job", t.name)
			metrics.JobRuns.WithLabelValues(t.name, "skipped").Inc()
			return
		}
		defer t.job.running.Store(false)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(s.runCtx); err != nil {
			return
		}
	}
	if !s.beginRun() {
		return
	}
	defer s.runWG.Done()

	ctx, cancel := context.WithTimeout(s.runCtx, hardTimeLimit)
	defer cancel()
	soft := time.AfterFunc(softTimeLimit, func() {
		s.logger.Warn("task exceeding soft time limit", "task", t.name)
	})
	defer soft.Stop()

	s.logger.Info("task started", "task", t.name, "trigger", t.trigger)
	start := time.Now()
	err := t.run(ctx)
	elapsed := time.Since(start)

	if t.job != nil {
		s.mu.Lock()
		t.job.lastRun = start.UTC()
		if err != nil {
			t.job.lastErr = err.Error()
		} else {
			t.job.lastErr = ""
		}
		s.mu.Unlock()
	}

	if err != nil {
		s.logger.Error("task failed", "task", t.name, "elapsed", elapsed, "err", err)
		metrics.RecordJobRun(t.name, "failure", elapsed.Seconds())
		return
	}
	s.logger.Info("task finished", "task", t.name, "elapsed", elapsed)
	metrics.RecordJobRun(t.name, "success", elapsed.Seconds())
}

// Jobs lists every registered job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		status := JobStatus{
			Name:      name,
			Schedule:  j.spec,
			Running:   j.running.Load(),
			LastError: j.lastErr,
		}
		if !j.nextRun.IsZero() {
			next := j.nextRun
			status.NextRun = &next
		}
		if !j.lastRun.IsZero() {
			last := j.lastRun
			status.LastRun = &last
		}
		out = append(out, status)
	}
	return out
}

// Shutdown stops the dispatcher, drops queued tasks, then gives running
// tasks the grace period before canceling their contexts.
func (s *Scheduler) Shutdown() {
	s.dispatchCancel()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Warn("grace period expired, canceling running tasks")
		s.runCancel()
		<-done
	}
	s.runCancel()
	s.workerWG.Wait()
	s.logger.Info("scheduler stopped")
}
