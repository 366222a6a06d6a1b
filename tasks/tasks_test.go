package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eth2030/ethlayer/metrics"
)

func TestGoExecutor(t *testing.T) {
	var wg sync.WaitGroup
	var n atomic.Int32
	wg.Add(2)
	GoExecutor{}.Spawn(func(ctx context.Context) {
		defer wg.Done()
		if ctx.Err() == nil {
			n.Add(1)
		}
	})
	GoExecutor{}.SpawnBlocking(func(context.Context) {
		defer wg.Done()
		n.Add(1)
	})
	wg.Wait()
	if n.Load() != 2 {
		t.Fatalf("ran %d tasks, want 2", n.Load())
	}
}

func TestTaskManager_Shutdown(t *testing.T) {
	m := NewTaskManager(context.Background())
	exec := m.Executor()
	started := make(chan struct{})
	exec.Spawn(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	done := make(chan error, 1)
	go func() { done <- m.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not stop task")
	}
	if !errors.Is(context.Cause(m.Context()), ErrShutdown) {
		t.Fatalf("cause = %v, want ErrShutdown", context.Cause(m.Context()))
	}
}

func TestTaskManager_PanicRecovered(t *testing.T) {
	before := metrics.TaskPanics.Value()
	m := NewTaskManager(context.Background())
	m.Executor().SpawnBlocking(func(context.Context) { panic("boom") })
	if err := m.Shutdown(); err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if metrics.TaskPanics.Value() != before+1 {
		t.Fatal("panic not counted")
	}
}

func TestBlockingTaskPool_Run(t *testing.T) {
	p := NewBlockingTaskPool(2, nil)
	v, err := Run(context.Background(), p, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("Run = %d, %v", v, err)
	}
	wantErr := errors.New("fail")
	if _, err := Run(context.Background(), p, func() (int, error) { return 0, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if _, err := Run(context.Background(), p, func() (int, error) { panic("bad") }); err == nil {
		t.Fatal("panic in job should be an error")
	}
}

func TestBlockingTaskPool_Bounded(t *testing.T) {
	p := NewBlockingTaskPool(2, GoExecutor{})
	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Run(context.Background(), p, func() (struct{}, error) {
				cur := running.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				<-release
				running.Add(-1)
				return struct{}{}, nil
			})
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size 2", peak.Load())
	}
}

func TestBlockingTaskPool_ContextCancel(t *testing.T) {
	p := NewBlockingTaskPool(1, nil)
	block := make(chan struct{})
	defer close(block)

	go Run(context.Background(), p, func() (int, error) { <-block; return 0, nil })
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := Run(ctx, p, func() (int, error) { return 1, nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestBlockingTaskPool_Closed(t *testing.T) {
	p := NewBlockingTaskPool(0, nil)
	if p.Size() != 1 {
		t.Fatalf("size = %d, want 1", p.Size())
	}
	p.Close()
	p.Close()
	if _, err := Run(context.Background(), p, func() (int, error) { return 1, nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}
