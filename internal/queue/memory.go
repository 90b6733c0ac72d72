package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process buffered queue. Envelopes do not survive a
// restart.
type MemoryQueue struct {
	ch        chan Envelope
	closeOnce sync.Once
	done      chan struct{}
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan Envelope, size), done: make(chan struct{})}
}

func (q *MemoryQueue) Push(ctx context.Context, env Envelope) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- env:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (Envelope, error) {
	select {
	case env := <-q.ch:
		return env, nil
	case <-q.done:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (q *MemoryQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

type memoryLock struct {
	owner   string
	expires time.Time
}

type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return false, nil
	}
	l.locks[key] = memoryLock{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.locks[key]; ok && held.owner == owner {
		delete(l.locks, key)
	}
	return nil
}
