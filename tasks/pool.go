package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/eth2030/ethlayer/metrics"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("tasks: blocking pool closed")

// BlockingTaskPool bounds the number of CPU-heavy jobs running at once.
// Jobs run on the supplied spawner's blocking side.
type BlockingTaskPool struct {
	sem     *semaphore.Weighted
	size    int64
	spawner TaskSpawner
	closed  chan struct{}
	once    sync.Once
}

// NewBlockingTaskPool returns a pool admitting size concurrent jobs. A
// non-positive size is treated as one.
func NewBlockingTaskPool(size int, spawner TaskSpawner) *BlockingTaskPool {
	if size < 1 {
		size = 1
	}
	if spawner == nil {
		spawner = GoExecutor{}
	}
	return &BlockingTaskPool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
		spawner: spawner,
		closed:  make(chan struct{}),
	}
}

// Size is the concurrency limit.
func (p *BlockingTaskPool) Size() int { return int(p.size) }

// Close rejects further submissions. Running jobs are not interrupted.
func (p *BlockingTaskPool) Close() {
	p.once.Do(func() { close(p.closed) })
}

type result[T any] struct {
	val T
	err error
}

// Run executes fn on the pool and waits for its result. If ctx ends first
// Run returns ctx.Err(); fn still runs to completion and then frees its
// slot.
func Run[T any](ctx context.Context, p *BlockingTaskPool, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-p.closed:
		return zero, ErrPoolClosed
	default:
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	metrics.BlockingTasksInFlight.Inc()
	done := make(chan result[T], 1)
	p.spawner.SpawnBlocking(func(context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("tasks: blocking job panicked: %v", r)}
			}
			metrics.BlockingTasksInFlight.Dec()
			p.sem.Release(1)
		}()
		v, err := fn()
		done <- result[T]{val: v, err: err}
	})
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
