package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	for i := 0; i < 5; i++ {
		v, ok := q.TryPop()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d (%v)", i, v, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")

	got := q.Drain()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected drain %v", got)
	}
	if q.Len() != 0 || len(q.Drain()) != 0 {
		t.Fatal("expected queue to be empty after drain")
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := NewQueue[int]()
	got := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("expected 42, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("pop was not woken by push")
	}
}

func TestQueuePopCancel(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not return after cancel")
	}
}

func TestQueuePushNeverBlocks(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10000; i++ {
		q.Push(i)
	}
	if q.Len() != 10000 {
		t.Fatalf("expected 10000 items, got %d", q.Len())
	}
}
