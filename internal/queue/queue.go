package queue

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("queue: closed")

// Envelope is one queued job run. Date is empty when the job should resolve
// "today" at execution time.
type Envelope struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	Date       string    `json:"date,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type Queue interface {
	Push(ctx context.Context, env Envelope) error
	// Pop blocks until an envelope is available or ctx is done.
	Pop(ctx context.Context) (Envelope, error)
}

// Locker grants a key to one owner at a time until the ttl lapses or the
// owner releases it.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}
