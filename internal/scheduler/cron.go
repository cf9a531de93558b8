package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-pagecms/internal/commands"
	"github.com/goliatone/go-pagecms/internal/logging"
	"github.com/goliatone/go-pagecms/pkg/interfaces"
	"github.com/robfig/cron/v3"
)

// JobSnapshotsCleanup names the periodic snapshot cleanup.
const JobSnapshotsCleanup = "snapshots.cleanup"

var (
	ErrJobNotFound  = errors.New("scheduler: job not found")
	ErrJobDuplicate = errors.New("scheduler: job already registered")
)

// Job is the unit of periodic work.
type Job func(ctx context.Context) error

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
}

type registeredJob struct {
	schedule string
	entryID  cron.EntryID
	run      func()
}

// Cron runs named jobs on cron expressions. Standard five field expressions
// and descriptors such as @daily are accepted.
type Cron struct {
	cron    *cron.Cron
	parser  cron.Parser
	logger  interfaces.Logger
	timeout time.Duration

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// Option configures Cron.
type Option func(*Cron)

// WithLogger sets the scheduler logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(c *Cron) {
		c.logger = logging.Ensure(logger)
	}
}

// WithJobTimeout bounds each run. Zero leaves runs unbounded.
func WithJobTimeout(timeout time.Duration) Option {
	return func(c *Cron) {
		c.timeout = timeout
	}
}

// WithLocation evaluates schedules in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(c *Cron) {
		if loc != nil {
			c.cron = cron.New(cron.WithLocation(loc), cron.WithParser(c.parser), cron.WithChain(cron.Recover(cronLogger{c})))
		}
	}
}

// New builds a stopped scheduler.
func New(opts ...Option) *Cron {
	c := &Cron{
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:  logging.NoOp(),
		timeout: 5 * time.Minute,
		jobs:    map[string]*registeredJob{},
	}
	c.cron = cron.New(cron.WithParser(c.parser), cron.WithChain(cron.Recover(cronLogger{c})))
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Add registers job under name on schedule.
func (c *Cron) Add(name, schedule string, job Job) error {
	if job == nil {
		return fmt.Errorf("scheduler: job %s is nil", name)
	}
	if _, err := c.parser.Parse(schedule); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", schedule, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobDuplicate, name)
	}
	run := func() { c.execute(name, job) }
	entryID, err := c.cron.AddFunc(schedule, run)
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", name, err)
	}
	c.jobs[name] = &registeredJob{schedule: schedule, entryID: entryID, run: run}
	c.logger.Debug("scheduler.job.registered", "job", name, "schedule", schedule)
	return nil
}

// Remove unregisters name.
func (c *Cron) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	c.cron.Remove(job.entryID)
	delete(c.jobs, name)
	return nil
}

// Trigger runs name immediately on the calling goroutine.
func (c *Cron) Trigger(name string) error {
	c.mu.RLock()
	job, ok := c.jobs[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	job.run()
	return nil
}

// Jobs lists registered jobs sorted by name.
func (c *Cron) Jobs() []JobInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]JobInfo, 0, len(c.jobs))
	for name, job := range c.jobs {
		entry := c.cron.Entry(job.entryID)
		out = append(out, JobInfo{
			Name:     name,
			Schedule: job.schedule,
			LastRun:  entry.Prev,
			NextRun:  entry.Next,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start runs the scheduler in its own goroutine.
func (c *Cron) Start() {
	c.cron.Start()
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (c *Cron) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cron) execute(name string, job Job) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	logger := logging.WithFields(c.logger, map[string]any{"job": name})
	started := time.Now()
	if err := job(ctx); err != nil {
		logger.Error("scheduler.job.failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
		return
	}
	logger.Info("scheduler.job.completed", "duration_ms", time.Since(started).Milliseconds())
}

// CleanupRunner executes the cleanup command.
type CleanupRunner interface {
	Execute(ctx context.Context, msg commands.CleanupSnapshotsCommand) error
}

// RegisterCleanup schedules snapshot cleanup for every site. An empty
// schedule leaves the job unregistered.
func RegisterCleanup(c *Cron, schedule string, keep int, runner CleanupRunner) error {
	if schedule == "" || runner == nil {
		return nil
	}
	return c.Add(JobSnapshotsCleanup, schedule, func(ctx context.Context) error {
		return runner.Execute(ctx, commands.CleanupSnapshotsCommand{Keep: keep})
	})
}

// cronLogger adapts the scheduler logger to cron.Logger for panic recovery.
type cronLogger struct {
	c *Cron
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.c.logger.Debug("scheduler.cron."+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.c.logger.Error("scheduler.cron."+msg, append(keysAndValues, "error", err)...)
}
