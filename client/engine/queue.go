package engine

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO. Push never blocks; Pop waits for an item or
// for ctx to end.
type Queue[T any] struct {
	mx     sync.Mutex
	items  []T
	notify chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

func (q *Queue[T]) Push(v T) {
	q.mx.Lock()
	q.items = append(q.items, v)
	q.mx.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) TryPop() (T, bool) {
	q.mx.Lock()
	defer q.mx.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// Drain removes and returns everything queued at the moment of the call.
func (q *Queue[T]) Drain() []T {
	q.mx.Lock()
	defer q.mx.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()

	return len(q.items)
}
