package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessorQueue_DrainsOnShutdown(t *testing.T) {
	var processed atomic.Int32
	var mu sync.Mutex
	var failed []string

	proc := ProcessorFunc(func(_ context.Context, job Job) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		if job.Path == "bad.png" {
			return errors.New("boom")
		}
		return nil
	})
	q := NewProcessorQueue(proc, nil,
		WithWorkers(3),
		WithQueueSize(2),
		WithResultHandler(func(r Result) {
			if r.Err != nil {
				mu.Lock()
				failed = append(failed, r.Job.Path)
				mu.Unlock()
			}
		}),
	)

	const n = 20
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("card-%d.png", i)
		if i == 7 {
			path = "bad.png"
		}
		if err := q.Enqueue(context.Background(), Job{Path: path}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if got := processed.Load(); got != n {
		t.Errorf("processed = %d, want %d", got, n)
	}
	if len(failed) != 1 || failed[0] != "bad.png" {
		t.Errorf("failed = %v, want [bad.png]", failed)
	}

	if err := q.Enqueue(context.Background(), Job{Path: "late.png"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after shutdown error = %v, want ErrQueueClosed", err)
	}
	if err := q.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestProcessorQueue_JobTimeout(t *testing.T) {
	errs := make(chan error, 1)
	proc := ProcessorFunc(func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	q := NewProcessorQueue(proc, nil,
		WithWorkers(1),
		WithProcessTimeout(10*time.Millisecond),
		WithResultHandler(func(r Result) { errs <- r.Err }),
	)
	if err := q.Enqueue(context.Background(), Job{Path: "slow.png"}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("job error = %v, want DeadlineExceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never timed out")
	}
	_ = q.Shutdown(context.Background())
}

func TestProcessorQueue_EnqueueHonoursContext(t *testing.T) {
	release := make(chan struct{})
	proc := ProcessorFunc(func(context.Context, Job) error {
		<-release
		return nil
	})
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		_ = q.Shutdown(context.Background())
	}()

	// one job in the worker, one in the buffer
	_ = q.Enqueue(context.Background(), Job{Path: "a.png"})
	time.Sleep(20 * time.Millisecond)
	_ = q.Enqueue(context.Background(), Job{Path: "b.png"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, Job{Path: "c.png"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Enqueue() on full queue error = %v, want DeadlineExceeded", err)
	}
}
