package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/metrics"
	"github.com/edigar/sales-control/internal/queue"
	"github.com/edigar/sales-control/internal/store"
)

const DefaultLockTTL = 30 * time.Minute

var (
	ErrUnknownJob       = errors.New("jobs: unknown job")
	ErrAlreadyRunning   = errors.New("jobs: a run of this job is already in progress")
	ErrQueueUnavailable = errors.New("jobs: no queue configured for asynchronous dispatch")
)

// Dispatcher runs jobs in place or hands them to a queue worker. Every run
// holds lock:<job> so two runs of the same job never overlap, on any server
// sharing the locker.
type Dispatcher struct {
	jobs    map[string]Job
	queue   queue.Queue
	locker  queue.Locker
	lockTTL time.Duration
	log     logrus.FieldLogger
	metrics *metrics.Recorder
}

// NewDispatcher registers jobs by name. q may be nil, in which case only
// synchronous dispatch is available.
func NewDispatcher(q queue.Queue, locker queue.Locker, log logrus.FieldLogger, rec *metrics.Recorder, jobs ...Job) *Dispatcher {
	if locker == nil {
		locker = queue.NewMemoryLocker()
	}
	registry := make(map[string]Job, len(jobs))
	for _, job := range jobs {
		registry[job.Name()] = job
	}
	return &Dispatcher{
		jobs:    registry,
		queue:   q,
		locker:  locker,
		lockTTL: DefaultLockTTL,
		log:     log,
		metrics: rec,
	}
}

// Dispatch validates the request and either runs the job now (sync) or
// enqueues it. The returned run id identifies the run in logs.
func (d *Dispatcher) Dispatch(ctx context.Context, name, date string, sync bool) (string, error) {
	if _, ok := d.jobs[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			return "", fmt.Errorf("%w: report date must be YYYY-MM-DD, got %q", store.ErrInvalidInput, date)
		}
	}

	env := queue.Envelope{RunID: uuid.NewString(), Job: name, Date: date, EnqueuedAt: time.Now().UTC()}
	if sync {
		return env.RunID, d.Execute(ctx, env)
	}
	if d.queue == nil {
		return "", ErrQueueUnavailable
	}
	if err := d.queue.Push(ctx, env); err != nil {
		return "", err
	}
	d.log.WithFields(logrus.Fields{"job": name, "run_id": env.RunID, "date": date}).Info("job queued")
	return env.RunID, nil
}

// Execute runs one envelope under the job's overlap lock. Once started the job
// is not cancelled by ctx.
func (d *Dispatcher) Execute(ctx context.Context, env queue.Envelope) error {
	job, ok := d.jobs[env.Job]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, env.Job)
	}
	log := d.log.WithFields(logrus.Fields{"job": env.Job, "run_id": env.RunID})

	lockKey := "lock:" + env.Job
	acquired, err := d.locker.Acquire(ctx, lockKey, env.RunID, d.lockTTL)
	if err != nil {
		d.metrics.JobRun(env.Job, metrics.OutcomeFailed)
		return fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !acquired {
		d.metrics.JobRun(env.Job, metrics.OutcomeSkipped)
		log.Warn("job skipped: previous run still in progress")
		return ErrAlreadyRunning
	}

	runCtx := WithRunID(context.WithoutCancel(ctx), env.RunID)
	defer func() {
		if err := d.locker.Release(runCtx, lockKey, env.RunID); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}()

	if err := job.Run(runCtx, env.Date); err != nil {
		d.metrics.JobRun(env.Job, metrics.OutcomeFailed)
		return err
	}
	d.metrics.JobRun(env.Job, metrics.OutcomeSuccess)
	return nil
}

// Work pops and executes envelopes until ctx is done or the queue closes.
func (d *Dispatcher) Work(ctx context.Context) error {
	if d.queue == nil {
		return ErrQueueUnavailable
	}
	d.log.Info("queue worker started")
	for {
		env, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				d.log.Info("queue worker stopped")
				return nil
			}
			d.log.WithError(err).Warn("queue pop failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := d.Execute(ctx, env); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			d.log.WithError(err).WithFields(logrus.Fields{"job": env.Job, "run_id": env.RunID}).Error("job run failed")
		}
	}
}
