// Package tasks provides the task-spawning capability handlers use for
// background work, a goroutine-backed default, a supervised executor and
// a bounded pool for CPU-heavy jobs.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/eth2030/ethlayer/log"
	"github.com/eth2030/ethlayer/metrics"
)

// ErrShutdown is the cancellation cause tasks observe after Shutdown.
var ErrShutdown = errors.New("tasks: shutdown")

// TaskSpawner runs functions in the background. Spawn is for short
// asynchronous work, SpawnBlocking for work that may hold a thread for
// long. The context passed to fn is cancelled on shutdown.
type TaskSpawner interface {
	Spawn(fn func(ctx context.Context))
	SpawnBlocking(fn func(ctx context.Context))
}

// GoExecutor runs every task on a fresh goroutine with a background
// context. It is the ambient default when no executor is supplied.
type GoExecutor struct{}

var _ TaskSpawner = GoExecutor{}

func (GoExecutor) Spawn(fn func(context.Context))         { go fn(context.Background()) }
func (GoExecutor) SpawnBlocking(fn func(context.Context)) { go fn(context.Background()) }

// TaskManager owns a set of supervised tasks. Panics in tasks are
// recovered, logged and counted; the first panic cancels the shared
// context.
type TaskManager struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group
	log    *log.Logger
	once   sync.Once
}

// NewTaskManager returns a manager whose tasks stop when parent is
// cancelled or Shutdown is called.
func NewTaskManager(parent context.Context) *TaskManager {
	ctx, cancel := context.WithCancelCause(parent)
	group, gctx := errgroup.WithContext(ctx)
	return &TaskManager{
		ctx:    gctx,
		cancel: cancel,
		group:  group,
		log:    log.Default().Module("tasks"),
	}
}

// Executor returns a TaskSpawner bound to this manager.
func (m *TaskManager) Executor() *TaskExecutor {
	return &TaskExecutor{m: m}
}

// Context is cancelled when the manager shuts down.
func (m *TaskManager) Context() context.Context { return m.ctx }

func (m *TaskManager) spawn(kind string, fn func(context.Context)) {
	metrics.TasksSpawned.Inc()
	m.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				metrics.TaskPanics.Inc()
				m.log.Error("Task panicked", "kind", kind, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("tasks: %s task panicked: %v", kind, r)
			}
		}()
		fn(m.ctx)
		return nil
	})
}

// Shutdown cancels every task's context and waits for them to return.
// The first task failure, if any, is returned.
func (m *TaskManager) Shutdown() error {
	m.once.Do(func() { m.cancel(ErrShutdown) })
	return m.group.Wait()
}

// TaskExecutor spawns tasks under a TaskManager.
type TaskExecutor struct {
	m *TaskManager
}

var _ TaskSpawner = (*TaskExecutor)(nil)

func (e *TaskExecutor) Spawn(fn func(context.Context))         { e.m.spawn("async", fn) }
func (e *TaskExecutor) SpawnBlocking(fn func(context.Context)) { e.m.spawn("blocking", fn) }
