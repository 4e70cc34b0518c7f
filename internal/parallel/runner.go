package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Mode selects how RunAll schedules its tasks.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
	ModeBatched    Mode = "batched"
	ModeStreamed   Mode = "streamed"
)

// Task is one unit of work with an optional per-task timeout and retry budget.
type Task struct {
	ID      string
	Fn      func(ctx context.Context) (any, error)
	Timeout time.Duration
	Retry   *RetryConfig
}

// Result is the outcome of one task. RunAll returns exactly one Result per
// input task; individual failures never abort the batch.
type Result struct {
	TaskID   string
	Value    any
	Err      error
	Duration time.Duration
	Attempts int
}

// OK reports whether the task succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Runner executes task batches under a global in-flight bound.
type Runner struct {
	maxInFlight    int64
	defaultTimeout time.Duration

	inFlight atomic.Int64
	peak     atomic.Int64

	completed atomic.Int64
	failed    atomic.Int64
}

// NewRunner creates a runner with the given global concurrency bound.
func NewRunner(maxInFlight int, defaultTimeout time.Duration) *Runner {
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Runner{
		maxInFlight:    int64(maxInFlight),
		defaultTimeout: defaultTimeout,
	}
}

// MaxInFlight returns the configured concurrency bound.
func (r *Runner) MaxInFlight() int {
	return int(r.maxInFlight)
}

// PeakInFlight returns the highest simultaneous in-flight count observed.
func (r *Runner) PeakInFlight() int {
	return int(r.peak.Load())
}

// Counts returns cumulative completed and failed task counts.
func (r *Runner) Counts() (completed, failed int64) {
	return r.completed.Load(), r.failed.Load()
}

// RunAll executes tasks under the selected mode and returns one Result per
// task. For sequential, parallel, and batched modes the results are in input
// order; streamed mode returns them in completion order. timeout is the
// default per-task timeout for tasks that carry none of their own.
func (r *Runner) RunAll(ctx context.Context, tasks []Task, mode Mode, timeout time.Duration) []Result {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if len(tasks) == 0 {
		return nil
	}

	start := time.Now()
	var results []Result
	switch mode {
	case ModeSequential:
		results = r.runSequential(ctx, tasks, timeout)
	case ModeBatched:
		results = r.runBatched(ctx, tasks, timeout)
	case ModeStreamed:
		results = r.runStreamed(ctx, tasks, timeout)
	default:
		results = r.runParallel(ctx, tasks, timeout)
	}

	var failures int
	for _, res := range results {
		if res.OK() {
			r.completed.Add(1)
		} else {
			r.failed.Add(1)
			failures++
		}
	}
	zap.L().Debug("task batch complete",
		zap.String("mode", string(mode)),
		zap.Int("tasks", len(tasks)),
		zap.Int("failures", failures),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

func (r *Runner) runSequential(ctx context.Context, tasks []Task, timeout time.Duration) []Result {
	results := make([]Result, len(tasks))
	for i, task := range tasks {
		results[i] = r.execute(ctx, task, timeout)
	}
	return results
}

func (r *Runner) runParallel(ctx context.Context, tasks []Task, timeout time.Duration) []Result {
	sem := semaphore.NewWeighted(r.maxInFlight)
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{TaskID: task.ID, Err: eris.Wrap(err, "parallel: acquire slot")}
				return
			}
			defer sem.Release(1)
			results[i] = r.execute(ctx, task, timeout)
		}(i, task)
	}
	wg.Wait()
	return results
}

func (r *Runner) runBatched(ctx context.Context, tasks []Task, timeout time.Duration) []Result {
	batchSize := int(r.maxInFlight)
	results := make([]Result, 0, len(tasks))
	for i := 0; i < len(tasks); i += batchSize {
		end := i + batchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		results = append(results, r.runParallel(ctx, tasks[i:end], timeout)...)
	}
	return results
}

// runStreamed starts every task at once (still semaphore-bounded) and
// collects results as they complete, so one slow task never delays the
// collection of the others.
func (r *Runner) runStreamed(ctx context.Context, tasks []Task, timeout time.Duration) []Result {
	sem := semaphore.NewWeighted(r.maxInFlight)
	out := make(chan Result, len(tasks))

	for _, task := range tasks {
		go func(task Task) {
			if err := sem.Acquire(ctx, 1); err != nil {
				out <- Result{TaskID: task.ID, Err: eris.Wrap(err, "parallel: acquire slot")}
				return
			}
			defer sem.Release(1)
			out <- r.execute(ctx, task, timeout)
		}(task)
	}

	results := make([]Result, 0, len(tasks))
	for range tasks {
		results = append(results, <-out)
	}
	return results
}

func (r *Runner) execute(ctx context.Context, task Task, defaultTimeout time.Duration) Result {
	cur := r.inFlight.Add(1)
	for {
		peak := r.peak.Load()
		if cur <= peak || r.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer r.inFlight.Add(-1)

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempts := 1

	var val any
	var err error
	if task.Retry != nil {
		cfg := *task.Retry
		inner := cfg.OnRetry
		cfg.OnRetry = func(attempt int, retryErr error) {
			attempts = attempt + 1
			if inner != nil {
				inner(attempt, retryErr)
			}
		}
		val, err = Retry(taskCtx, cfg, task.Fn)
	} else {
		val, err = task.Fn(taskCtx)
	}

	return Result{
		TaskID:   task.ID,
		Value:    val,
		Err:      err,
		Duration: time.Since(start),
		Attempts: attempts,
	}
}
