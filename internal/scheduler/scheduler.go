package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/queue"
)

const tickLockTTL = time.Hour

// Dispatcher enqueues a job run.
type Dispatcher interface {
	Dispatch(ctx context.Context, name, date string, sync bool) (string, error)
}

// Entry fires Job once a day at At ("HH:MM") in the scheduler's timezone.
type Entry struct {
	Job string
	At  string
}

// Scheduler triggers daily report jobs. When several servers run the same
// schedule against a shared locker, only the first to claim a tick dispatches.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	locker     queue.Locker
	loc        *time.Location
	log        logrus.FieldLogger
	hostname   string
}

func New(dispatcher Dispatcher, locker queue.Locker, loc *time.Location, log logrus.FieldLogger, hostname string) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if locker == nil {
		locker = queue.NewMemoryLocker()
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		dispatcher: dispatcher,
		locker:     locker,
		loc:        loc,
		log:        log,
		hostname:   hostname,
	}
}

func (s *Scheduler) Add(entry Entry) error {
	spec, err := DailySpec(entry.At)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", entry.Job, err)
	}
	_, err = s.cron.AddFunc(spec, func() { s.Fire(context.Background(), entry.Job, time.Now()) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", entry.Job, err)
	}
	s.log.WithFields(logrus.Fields{"job": entry.Job, "at": entry.At, "timezone": s.loc.String()}).Info("job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further ticks and waits for a running Fire to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Fire claims the tick for this server and enqueues the job. A tick already
// claimed elsewhere is skipped.
func (s *Scheduler) Fire(ctx context.Context, job string, at time.Time) {
	log := s.log.WithField("job", job)
	key := TickKey(job, at.In(s.loc))

	claimed, err := s.locker.Acquire(ctx, key, s.hostname, tickLockTTL)
	if err != nil {
		log.WithError(err).Error("failed to claim scheduled tick")
		return
	}
	if !claimed {
		log.Debug("scheduled tick already claimed by another server")
		return
	}

	runID, err := s.dispatcher.Dispatch(ctx, job, "", false)
	if err != nil {
		log.WithError(err).Error("failed to dispatch scheduled job")
		return
	}
	log.WithField("run_id", runID).Info("scheduled job dispatched")
}

// DailySpec converts "HH:MM" into a five-field cron expression.
func DailySpec(at string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(at), ":")
	if !ok {
		return "", fmt.Errorf("time %q must be HH:MM", at)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("time %q has an invalid hour", at)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("time %q has an invalid minute", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func TickKey(job string, at time.Time) string {
	return "schedule:" + job + ":" + at.Format("200601021504")
}
