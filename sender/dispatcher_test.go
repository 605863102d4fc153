package sender

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 8, Workers: 2})
	defer d.Close()

	var ran atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send_text", "u1", func(context.Context) error {
		ran.Add(1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	if ran.Load() != 1 {
		t.Errorf("ran = %d", ran.Load())
	}
}

func TestDispatcherPerUserOrder(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 64, Workers: 4})
	defer d.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		err := d.Enqueue(context.Background(), "send_text", "same-user", func(context.Context) error {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	wg.Wait()
	for i, v := range got {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", got)
		}
	}
}

func TestDispatcherCountsFailures(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 8, Workers: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	d.Enqueue(context.Background(), "send_text", "u1", func(context.Context) error {
		defer wg.Done()
		return errors.New("transport down")
	})
	wg.Wait()
	d.Close()

	if d.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	defer d.Close()

	release := make(chan struct{})
	// Occupy the worker, then fill the single queue slot.
	d.Enqueue(context.Background(), "send_text", "u1", func(context.Context) error {
		<-release
		return nil
	})
	var err error
	deadline := time.After(2 * time.Second)
	for {
		err = d.Enqueue(context.Background(), "send_text", "u1", func(context.Context) error { return nil })
		if errors.Is(err, ErrQueueFull) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queue never filled")
		default:
		}
	}
	close(release)
}

func TestDispatcherClosedQueue(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	d.Close()
	err := d.Enqueue(context.Background(), "send_text", "u1", func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestDispatcherJobTimeout(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 4, Workers: 1, SendTimeout: 50 * time.Millisecond})
	defer d.Close()

	done := make(chan error, 1)
	d.Enqueue(context.Background(), "send_text", "u1", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("job ctx err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job deadline never fired")
	}
}
